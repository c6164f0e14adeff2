package acquire

// Source is one of LocalFile, Upload, Remote or None.
type Source interface {
	sourceKind() string
}

// LocalFile is a dump on the local filesystem.
type LocalFile struct {
	Path string
}

// Upload is a local file whose bytes were already received, such as a form upload.
type Upload struct {
	Name string
	Data []byte
}

// Remote is a dump fetched over HTTP.
type Remote struct {
	URL string
}

// None clears the current input.
type None struct{}

func (LocalFile) sourceKind() string { return "local" }
func (Upload) sourceKind() string    { return "upload" }
func (Remote) sourceKind() string    { return "remote" }
func (None) sourceKind() string      { return "none" }

func isLocal(src Source) bool {
	switch src.(type) {
	case LocalFile, *LocalFile, Upload, *Upload:
		return true
	}
	return false
}
