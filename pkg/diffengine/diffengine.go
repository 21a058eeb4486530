// Package diffengine computes and applies text patches and performs
// line-level three-way merges. All operations are pure and deterministic:
// outputs depend only on their inputs, never on environment, locale, or
// wall-clock time.
package diffengine

import (
	"errors"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// ErrPatchDidNotApply is returned by Apply when one or more hunks of the
// patch could not locate their context in base.
var ErrPatchDidNotApply = errors.New("diffengine: patch did not apply cleanly")

// MakePatch produces a patch transforming old into new. The returned text
// is diffmatchpatch's own stable patch serialization, which already does
// fuzzy context matching on Apply and is safe to store verbatim as an
// edit's diff.
func MakePatch(old, new string) string {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(old, new, true)
	patches := dmp.PatchMake(old, diffs)
	return dmp.PatchToText(patches)
}

// Apply applies patch to base, returning the resulting text. If any hunk
// fails to locate its context, Apply returns ErrPatchDidNotApply.
func Apply(base, patch string) (string, error) {
	dmp := diffmatchpatch.New()
	patches, err := dmp.PatchFromText(patch)
	if err != nil {
		return "", errors.Join(ErrPatchDidNotApply, err)
	}
	result, applied := dmp.PatchApply(patches, base)
	for _, ok := range applied {
		if !ok {
			return "", ErrPatchDidNotApply
		}
	}
	return result, nil
}

// Conflict markers match the standard diff3/git form so the merged text
// may be round-tripped by humans and other tooling.
const (
	MarkerOurs      = "<<<<<<< ours\n"
	MarkerSeparator = "=======\n"
	MarkerTheirs    = ">>>>>>> theirs\n"
)

// MergeConflict describes a three-way merge that could not resolve
// cleanly. Text holds the full merged document with conflict markers
// wrapping every contested region.
type MergeConflict struct {
	Text string
}

func (c *MergeConflict) Error() string {
	return "diffengine: three-way merge produced conflicts"
}

// ThreeWayMerge merges ours and theirs, both descended from ancestor, at
// line granularity, using the standard go-diff idiom of hashing whole
// lines to single runes (DiffLinesToChars/DiffCharsToLines) so DiffMain
// operates at line rather than character granularity.
//
// A line region changed on only one side is taken from the side that
// changed it; a region changed differently on both sides becomes a
// conflict bounded by MarkerOurs/MarkerSeparator/MarkerTheirs.
//
// On a clean merge, ThreeWayMerge returns (mergedText, nil). On conflict,
// it returns ("", conflict) with conflict.Text holding the marker-
// annotated document.
func ThreeWayMerge(ancestor, ours, theirs string) (string, *MergeConflict) {
	dmp := diffmatchpatch.New()

	ancForOurs, ourChars, lineArrayOurs := dmp.DiffLinesToChars(ancestor, ours)
	ourDiffs := dmp.DiffMain(ancForOurs, ourChars, false)
	ourDiffs = dmp.DiffCharsToLines(ourDiffs, lineArrayOurs)

	ancForTheirs, theirChars, lineArrayTheirs := dmp.DiffLinesToChars(ancestor, theirs)
	theirDiffs := dmp.DiffMain(ancForTheirs, theirChars, false)
	theirDiffs = dmp.DiffCharsToLines(theirDiffs, lineArrayTheirs)

	out, conflicted := mergeOnAncestor(ancestor, buildChanges(ourDiffs), buildChanges(theirDiffs))

	if conflicted {
		return "", &MergeConflict{Text: out}
	}
	return out, nil
}

// change is a region of ancestor, identified by its byte offsets within
// ancestor, that one side's diff replaced with text. A zero-width region
// (ancStart == ancEnd) is a pure insertion at that point.
type change struct {
	ancStart, ancEnd int
	text             string
}

// buildChanges walks a diff computed against ancestor and returns, in
// ancestor order, every region where the diff departs from it. Equal ops
// consume ancestor without producing a change; a contiguous run of
// Delete/Insert ops between two Equal anchors becomes one change spanning
// the ancestor bytes the Deletes consumed, replaced by the Inserts'
// concatenated text. Because Equal and Delete together retile ancestor
// exactly, ancStart/ancEnd are real offsets into the ancestor string, so
// both sides' change lists share the same coordinate space regardless of
// how their two independently-computed diffs happened to carve it up —
// that shared space is what mergeOnAncestor aligns on instead of the
// diffs' own op indices.
func buildChanges(diffs []diffmatchpatch.Diff) []change {
	var changes []change
	ancPos := 0
	i := 0
	for i < len(diffs) {
		if diffs[i].Type == diffmatchpatch.DiffEqual {
			ancPos += len(diffs[i].Text)
			i++
			continue
		}

		start := ancPos
		var text strings.Builder
		for i < len(diffs) && diffs[i].Type != diffmatchpatch.DiffEqual {
			switch diffs[i].Type {
			case diffmatchpatch.DiffDelete:
				ancPos += len(diffs[i].Text)
			case diffmatchpatch.DiffInsert:
				text.WriteString(diffs[i].Text)
			}
			i++
		}
		changes = append(changes, change{ancStart: start, ancEnd: ancPos, text: text.String()})
	}
	return changes
}

// sideText reconstructs one side's view of ancestor[start:end), substituting
// each change's replacement text over its own range and leaving any
// untouched sub-range as the original ancestor text.
func sideText(ancestor string, changes []change, start, end int) string {
	var b strings.Builder
	cur := start
	for _, c := range changes {
		if c.ancStart > cur {
			b.WriteString(ancestor[cur:c.ancStart])
		}
		b.WriteString(c.text)
		cur = c.ancEnd
	}
	if end > cur {
		b.WriteString(ancestor[cur:end])
	}
	return b.String()
}

// mergeOnAncestor walks ourChanges and theirChanges in lockstep by their
// shared ancestor position, a real diff3 alignment rather than a walk over
// each side's diff-op list (which desyncs whenever the two diffs carve the
// same edit into a different number of ops — the cause of the false
// conflicts this replaces). A region changed on only one side passes
// through verbatim. Regions changed on both sides that touch or overlap
// are absorbed into a single block and compared as a whole: identical
// replacement text merges cleanly, differing text becomes a conflict
// bounded by the standard diff3 markers.
func mergeOnAncestor(ancestor string, ourChanges, theirChanges []change) (string, bool) {
	var out strings.Builder
	conflicted := false

	cur := 0
	oi, ti := 0, 0
	for oi < len(ourChanges) || ti < len(theirChanges) {
		var oc, tc *change
		if oi < len(ourChanges) {
			oc = &ourChanges[oi]
		}
		if ti < len(theirChanges) {
			tc = &theirChanges[ti]
		}

		switch {
		case oc == nil:
			out.WriteString(ancestor[cur:tc.ancStart])
			out.WriteString(tc.text)
			cur = tc.ancEnd
			ti++
		case tc == nil:
			out.WriteString(ancestor[cur:oc.ancStart])
			out.WriteString(oc.text)
			cur = oc.ancEnd
			oi++
		case oc.ancEnd < tc.ancStart:
			out.WriteString(ancestor[cur:oc.ancStart])
			out.WriteString(oc.text)
			cur = oc.ancEnd
			oi++
		case tc.ancEnd < oc.ancStart:
			out.WriteString(ancestor[cur:tc.ancStart])
			out.WriteString(tc.text)
			cur = tc.ancEnd
			ti++
		default:
			// oc and tc touch or overlap (including two zero-width
			// insertions at the identical point): grow a block absorbing
			// every further change on either side that still touches it.
			blockStart := min(oc.ancStart, tc.ancStart)
			blockEnd := max(oc.ancEnd, tc.ancEnd)
			oStart, tStart := oi, ti
			oi++
			ti++
			for {
				absorbed := false
				for oi < len(ourChanges) && ourChanges[oi].ancStart <= blockEnd {
					if ourChanges[oi].ancEnd > blockEnd {
						blockEnd = ourChanges[oi].ancEnd
					}
					oi++
					absorbed = true
				}
				for ti < len(theirChanges) && theirChanges[ti].ancStart <= blockEnd {
					if theirChanges[ti].ancEnd > blockEnd {
						blockEnd = theirChanges[ti].ancEnd
					}
					ti++
					absorbed = true
				}
				if !absorbed {
					break
				}
			}

			oursText := sideText(ancestor, ourChanges[oStart:oi], blockStart, blockEnd)
			theirsText := sideText(ancestor, theirChanges[tStart:ti], blockStart, blockEnd)

			out.WriteString(ancestor[cur:blockStart])
			if oursText == theirsText {
				out.WriteString(oursText)
			} else {
				conflicted = true
				out.WriteString(MarkerOurs)
				out.WriteString(oursText)
				out.WriteString(MarkerSeparator)
				out.WriteString(theirsText)
				out.WriteString(MarkerTheirs)
			}
			cur = blockEnd
		}
	}
	out.WriteString(ancestor[cur:])

	return out.String(), conflicted
}
