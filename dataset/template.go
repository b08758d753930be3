package dataset

import (
	"path"
	"strconv"
	"strings"
)

// Token is replaced by the file counter in basename templates.
const Token = "{i}"

// ValidateBasenameTemplate checks that t holds Token exactly once and no
// path separator.
func ValidateBasenameTemplate(t string) error {
	if strings.Contains(t, "/") {
		return &ErrInvalidTemplate{Template: t, Reason: "contained '/'"}
	}

	switch strings.Count(t, Token) {
	case 0:
		return &ErrInvalidTemplate{Template: t, Reason: "did not contain '" + Token + "'"}
	case 1:
		return nil
	default:
		return &ErrInvalidTemplate{Template: t, Reason: "contained '" + Token + "' more than once"}
	}
}

// filename returns the path of file i of a directory queue.
func filename(template, directory, prefix string, i int) string {
	base := prefix + strings.Replace(template, Token, strconv.Itoa(i), 1)
	if directory == "" {
		return base
	}
	return path.Join(directory, base)
}
