package cloudinarytools

import (
	"bytes"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"
)

// RawKind discriminates the value shapes an EXIF tag can carry.
type RawKind int

const (
	RawInteger RawKind = iota
	RawFloat
	RawRational
	RawText
)

// RawValue is one extracted tag value. Exactly the fields matching Kind are
// meaningful; everything else stays zero.
type RawValue struct {
	Kind  RawKind
	Int   int64
	Float float64
	Num   int64
	Den   int64
	Text  string
}

// RawMetadataBag maps resolved tag names to their raw values. It is built
// once per image and never mutated afterwards.
type RawMetadataBag map[string]RawValue

// lookup returns the first present, non-empty value among the given tag
// names. Empty text values count as absent, mirroring the null-drop rule of
// the selection step.
func (b RawMetadataBag) lookup(names ...string) (RawValue, bool) {
	for _, name := range names {
		v, ok := b[name]
		if !ok {
			continue
		}
		if v.Kind == RawText && v.Text == "" {
			continue
		}
		return v, true
	}
	return RawValue{}, false
}

type bagWalker struct {
	bag RawMetadataBag
}

func (w *bagWalker) Walk(name exif.FieldName, tag *tiff.Tag) error {
	if tag == nil {
		return nil
	}
	w.bag[string(name)] = rawValueFromTag(tag)
	return nil
}

// ExtractMetadata pulls the raw tag bag out of the image's embedded EXIF
// block. Images without a readable block yield an empty bag, not an error.
// Tag identifiers outside the resolver's name table are dropped; the bag
// only ever holds canonically named tags.
func ExtractMetadata(content []byte) (RawMetadataBag, error) {
	bag := make(RawMetadataBag)
	if len(content) == 0 {
		return bag, ErrEmptyContent
	}

	x, err := exif.Decode(bytes.NewReader(content))
	if err != nil {
		// No APP1 block, or one we cannot parse: the image simply
		// carries no usable metadata.
		return bag, nil
	}

	walker := &bagWalker{bag: bag}
	if err := x.Walk(walker); err != nil {
		return bag, nil
	}
	return bag, nil
}

func rawValueFromTag(tag *tiff.Tag) RawValue {
	switch tag.Format() {
	case tiff.IntVal:
		v, err := tag.Int64(0)
		if err != nil {
			return RawValue{Kind: RawText, Text: tag.String()}
		}
		return RawValue{Kind: RawInteger, Int: v}
	case tiff.FloatVal:
		v, err := tag.Float(0)
		if err != nil {
			return RawValue{Kind: RawText, Text: tag.String()}
		}
		return RawValue{Kind: RawFloat, Float: v}
	case tiff.RatVal:
		num, den, err := tag.Rat2(0)
		if err != nil {
			return RawValue{Kind: RawText, Text: tag.String()}
		}
		return RawValue{Kind: RawRational, Num: num, Den: den}
	case tiff.StringVal:
		s, err := tag.StringVal()
		if err != nil {
			return RawValue{Kind: RawText, Text: tag.String()}
		}
		return RawValue{Kind: RawText, Text: s}
	default:
		// Undefined and vendor-specific payloads are carried as their
		// textual rendering.
		return RawValue{Kind: RawText, Text: tag.String()}
	}
}

// seconds converts a numeric raw value to float seconds. Text values are not
// handled here; callers decide their pass-through policy.
func (v RawValue) seconds() (float64, bool) {
	switch v.Kind {
	case RawInteger:
		return float64(v.Int), true
	case RawFloat:
		return v.Float, true
	case RawRational:
		if v.Den == 0 {
			return 0, false
		}
		return float64(v.Num) / float64(v.Den), true
	}
	return 0, false
}
