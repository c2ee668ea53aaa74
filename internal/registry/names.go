package registry

// NameIndex maps a (non-unique) human name to the IDs carrying it, in insertion order.
// It has no lock of its own; the owning store serializes access.
type NameIndex struct {
	ids map[string][]string
}

func NewNameIndex() *NameIndex {
	return &NameIndex{ids: map[string][]string{}}
}

func (n *NameIndex) Add(name, id string) {
	for _, existing := range n.ids[name] {
		if existing == id {
			return
		}
	}
	n.ids[name] = append(n.ids[name], id)
}

func (n *NameIndex) Remove(name, id string) {
	list := n.ids[name]
	for i, existing := range list {
		if existing != id {
			continue
		}
		list = append(list[:i:i], list[i+1:]...)
		if len(list) == 0 {
			delete(n.ids, name)
		} else {
			n.ids[name] = list
		}
		return
	}
}

func (n *NameIndex) Rename(oldName, newName, id string) {
	if oldName == newName {
		return
	}
	n.Remove(oldName, id)
	n.Add(newName, id)
}

// Lookup returns a copy of the IDs registered under name.
func (n *NameIndex) Lookup(name string) []string {
	list := n.ids[name]
	if len(list) == 0 {
		return nil
	}
	return append([]string(nil), list...)
}

func (n *NameIndex) Len() int { return len(n.ids) }

func (n *NameIndex) Clear() { n.ids = map[string][]string{} }
