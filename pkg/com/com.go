package com

// NetClient is a connected party tracked by id.
type NetClient[K comparable] interface {
	Disconnect()
	Id() K
}

// NetMap is a concurrent-safe map of network clients.
type NetMap[K comparable, T NetClient[K]] struct{ Map[K, T] }

func NewNetMap[K comparable, T NetClient[K]]() NetMap[K, T] {
	return NetMap[K, T]{Map: Map[K, T]{m: make(map[K]T, 10)}}
}

func (m *NetMap[K, T]) Add(client T)              { m.Put(client.Id(), client) }
func (m *NetMap[K, T]) Remove(client T)           { m.RemoveByKey(client.Id()) }
func (m *NetMap[K, T]) RemoveDisconnect(client T) { client.Disconnect(); m.Remove(client) }
