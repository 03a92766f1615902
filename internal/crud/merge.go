package crud

// Merge is a shallow ordered merge: keys of later layers overwrite keys of
// earlier ones. Nil layers are skipped and no layer is modified.
func Merge(layers ...map[string]any) Document {
	size := 0
	for _, l := range layers {
		size += len(l)
	}
	out := make(Document, size)
	for _, l := range layers {
		for k, v := range l {
			out[k] = v
		}
	}
	return out
}

// without returns a copy of doc minus the given keys.
func without(doc map[string]any, keys ...string) Document {
	out := Merge(doc)
	for _, k := range keys {
		delete(out, k)
	}
	return out
}
