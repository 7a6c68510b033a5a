package node

import (
	"fmt"
	"sort"
	"sync"

	"github.com/pborman/uuid"
	"github.com/portworx/jobharness/pkg/errors"
)

var (
	nodeRegistry = make(map[string]Node)
	lock         sync.RWMutex
)

// AddNode adds a node to the node collection
func AddNode(n Node) error {
	if n.uuid != "" {
		return fmt.Errorf("UUID should not be set to add new node")
	}
	if n.Name == "" {
		return fmt.Errorf("node name should not be empty")
	}
	lock.Lock()
	defer lock.Unlock()
	for _, existing := range nodeRegistry {
		if existing.Name == n.Name {
			return fmt.Errorf("node %s is already registered", n.Name)
		}
	}
	n.uuid = uuid.New()
	nodeRegistry[n.uuid] = n
	return nil
}

// UpdateNode updates a given node if it exists in the node collection
func UpdateNode(n Node) error {
	lock.Lock()
	defer lock.Unlock()
	if _, ok := nodeRegistry[n.uuid]; !ok {
		return fmt.Errorf("Node to be updated does not exist")
	}
	nodeRegistry[n.uuid] = n
	return nil
}

// GetNodes returns all the nodes from the node collection sorted by name
func GetNodes() []Node {
	lock.RLock()
	defer lock.RUnlock()
	var nodeList []Node
	for _, n := range nodeRegistry {
		nodeList = append(nodeList, n)
	}
	sort.Slice(nodeList, func(i, j int) bool { return nodeList[i].Name < nodeList[j].Name })
	return nodeList
}

// GetNodeByName returns the node called name
func GetNodeByName(name string) (Node, error) {
	lock.RLock()
	defer lock.RUnlock()
	for _, n := range nodeRegistry {
		if n.Name == name {
			return n, nil
		}
	}
	return Node{}, &errors.ErrNotFound{ID: name, Type: "Node"}
}

// GetNodesByName returns map of nodes where the node name is the key
func GetNodesByName() map[string]Node {
	lock.RLock()
	defer lock.RUnlock()
	nodeMap := make(map[string]Node)
	for _, n := range nodeRegistry {
		nodeMap[n.Name] = n
	}
	return nodeMap
}

// ClearNodes empties the node collection
func ClearNodes() {
	lock.Lock()
	defer lock.Unlock()
	nodeRegistry = make(map[string]Node)
}

// Contains checks if the node is present in the given list of nodes
func Contains(nodes []Node, n Node) bool {
	for _, value := range nodes {
		if value.Name == n.Name {
			return true
		}
	}
	return false
}
