package model

type ThreadUsage struct {
	Total    int   `json:"total"`
	Assigned []int `json:"assigned"`
	Free     []int `json:"free"`
}

type NodeThreads struct {
	NodeID   int64  `json:"node_id"`
	NodeName string `json:"node_name"`
	Threads  struct {
		Total         int   `json:"total"`
		Assigned      []int `json:"assigned"`
		Free          []int `json:"free"`
		AssignedCount int   `json:"assigned_count"`
		FreeCount     int   `json:"free_count"`
	} `json:"threads"`
}

func NewNodeThreads(node *Node, usage ThreadUsage) NodeThreads {
	var out NodeThreads
	out.NodeID = node.ID
	out.NodeName = node.Name
	out.Threads.Total = usage.Total
	out.Threads.Assigned = usage.Assigned
	out.Threads.Free = usage.Free
	out.Threads.AssignedCount = len(usage.Assigned)
	out.Threads.FreeCount = len(usage.Free)
	return out
}
