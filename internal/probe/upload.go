package probe

import (
	"fmt"
	"os"
	"strings"
)

const bytesPerMB = 1024 * 1024

// ValidateUpload applies the local acceptance rules to a candidate file. It
// returns an empty Rejection when the file may be attached.
func ValidateUpload(path, allowedExt string, maxBytes int64) (Rejection, string) {
	if path == "" || !strings.HasSuffix(strings.ToLower(path), strings.ToLower(allowedExt)) {
		return RejectNotPDF, fmt.Sprintf("file must be a %s", strings.TrimPrefix(strings.ToUpper(allowedExt), "."))
	}

	info, err := os.Stat(path)
	if err != nil {
		return RejectUnreadable, fmt.Sprintf("cannot read file: %v", err)
	}
	if info.IsDir() {
		return RejectUnreadable, fmt.Sprintf("%s is a directory", path)
	}

	if info.Size() > maxBytes {
		return RejectTooLarge, fmt.Sprintf("file exceeds %d MB. Current size: %.2f MB",
			maxBytes/bytesPerMB, float64(info.Size())/bytesPerMB)
	}
	return "", ""
}
