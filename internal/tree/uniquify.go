package tree

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// siblingChecker is the single read the uniquifier needs: does a live node
// with this name already exist among the same-kind children of a parent.
type siblingChecker interface {
	SiblingNameExists(ctx context.Context, parentID, ownerID int64, isFolder bool, name string) (bool, error)
}

// Uniquifier produces collision-free names within a parent's live children.
type Uniquifier struct {
	store siblingChecker
}

func NewUniquifier(store siblingChecker) *Uniquifier {
	return &Uniquifier{store: store}
}

// Uniquify returns desired unchanged when it is free, otherwise the first
// free "<stem> (n)<ext>" candidate, n counting up from 1.
func (u *Uniquifier) Uniquify(ctx context.Context, desired string, parentID, ownerID int64, isFolder bool) (string, error) {
	stem, ext := splitName(desired)

	candidate := desired
	for counter := 1; ; counter++ {
		exists, err := u.store.SiblingNameExists(ctx, parentID, ownerID, isFolder, candidate)
		if err != nil {
			return "", fmt.Errorf("failed to check sibling name %q: %w", candidate, err)
		}
		if !exists {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s (%d)%s", stem, counter, ext)
	}
}

var copySuffixRe = regexp.MustCompile(`^(.*) \(Copy(?: (\d+))?\)$`)

// CopyName derives the name for a duplicate: "plan.docx" becomes
// "plan (Copy).docx", an existing Copy suffix is incremented. Callers pass
// the result through Uniquify before use.
func CopyName(name string) string {
	stem, ext := splitName(name)

	if m := copySuffixRe.FindStringSubmatch(stem); m != nil {
		n := 1
		if m[2] != "" {
			parsed, err := strconv.Atoi(m[2])
			if err == nil {
				n = parsed
			}
		}
		return fmt.Sprintf("%s (Copy %d)%s", m[1], n+1, ext)
	}
	return stem + " (Copy)" + ext
}

// splitName separates the extension (after the last dot) from the stem.
// Names without a dot have an empty extension.
func splitName(name string) (stem, ext string) {
	idx := strings.LastIndex(name, ".")
	if idx <= 0 {
		return name, ""
	}
	return name[:idx], name[idx:]
}
