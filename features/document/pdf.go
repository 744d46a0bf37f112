package document

import "github.com/pdfcpu/pdfcpu/pkg/api"

// PageCount probes a stored file with pdfcpu. It doubles as the upload-time
// validity check: an unreadable or corrupt PDF fails here, before a row is
// ever written.
func PageCount(path string) (int, error) {
	return api.PageCountFile(path)
}
