package flagcore

// PersistenceWriter writes a named blob of text, returning whether the
// write succeeded. name is always "features-"+user.Key (spec.md §6.3).
type PersistenceWriter func(ctx interface{}, name, blob string) bool

// PersistenceReader reads a named blob of text previously written by a
// PersistenceWriter, returning (blob, true) if present.
type PersistenceReader func(ctx interface{}, name string) (string, bool)

// PersistenceHooks bundles the read/write pair the embedder supplies for
// thread/process-safe storage (spec.md §1: "just read a blob by name / write
// a blob by name"). Either field may be nil to disable persistence.
type PersistenceHooks struct {
	Write PersistenceWriter
	Read  PersistenceReader
	Ctx   interface{}
}

func persistenceName(userKey string) string {
	return "features-" + userKey
}
