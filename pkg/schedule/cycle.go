package schedule

// WouldCreateCycle reports whether adding the edge taskID -> dependsOnTaskID
// would close a cycle. The proposed edge makes taskID a successor of
// dependsOnTaskID, so the check walks the existing predecessor edges outward
// from dependsOnTaskID: if taskID is reachable, it is already (directly or
// transitively) a prerequisite of dependsOnTaskID and the new edge would loop.
func (g *Graph) WouldCreateCycle(taskID, dependsOnTaskID int64) bool {
	if taskID == dependsOnTaskID {
		return true
	}
	visited := map[int64]struct{}{dependsOnTaskID: {}}
	queue := []int64{dependsOnTaskID}
	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]
		for _, pred := range g.preds[curr] {
			if pred == taskID {
				return true
			}
			if _, ok := visited[pred]; ok {
				continue
			}
			visited[pred] = struct{}{}
			queue = append(queue, pred)
		}
	}
	return false
}
