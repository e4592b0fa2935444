package cloudinarytools

import (
	"math"
	"math/big"
	"strconv"
	"strings"
)

// maxShutterDenominator bounds the fraction search for sub-second exposure
// times. Large enough that every real shutter speed reduces exactly.
const maxShutterDenominator = 1_000_000

// exposureProgramLabels maps the EXIF ExposureProgram code to its display
// label. Codes outside the table render as "Not defined".
var exposureProgramLabels = map[int64]string{
	0: "Not defined",
	1: "Manual",
	2: "Program AE",
	3: "Aperture-priority AE",
	4: "Shutter-priority AE",
	5: "Creative (slow speed)",
	6: "Action (high speed)",
	7: "Portrait",
	8: "Landscape",
}

// Normalize reshapes a raw tag bag into the fixed-shape context record.
// Only the nine known tags are kept; ISOSpeedRatings and
// FocalLengthIn35mmFilm are renamed on the way out. Tags that downstream
// formatting touches unconditionally (Model, Software, ExposureTime,
// FocalLengthIn35mmFilm, ExposureProgram) must be present, otherwise a
// *MissingFieldError is returned. The renamed keys are accepted on input as
// well, which makes a second normalization pass a no-op.
func Normalize(bag RawMetadataBag) (*Context, error) {
	model, ok := bag.lookup("Model")
	if !ok {
		return nil, &MissingFieldError{Field: "Model"}
	}
	software, ok := bag.lookup("Software")
	if !ok {
		return nil, &MissingFieldError{Field: "Software"}
	}
	exposureTime, ok := bag.lookup("ExposureTime")
	if !ok {
		return nil, &MissingFieldError{Field: "ExposureTime"}
	}
	focalLength, ok := bag.lookup("FocalLengthIn35mmFilm", "FocalLengthIn35mmFormat")
	if !ok {
		return nil, &MissingFieldError{Field: "FocalLengthIn35mmFormat"}
	}
	program, ok := bag.lookup("ExposureProgram")
	if !ok {
		return nil, &MissingFieldError{Field: "ExposureProgram"}
	}

	context := &Context{
		Model:                   textValue(model),
		ExposureProgram:         exposureProgramValue(program),
		FocalLengthIn35mmFormat: focalLengthValue(focalLength),
		ExposureTime:            exposureTimeValue(exposureTime),
	}
	context.Software = normalizeSoftware(textValue(software), context.Model)

	if v, ok := bag.lookup("LensModel"); ok {
		context.LensModel = textValue(v)
	}
	if v, ok := bag.lookup("FNumber"); ok {
		context.FNumber = decimalValue(v)
	}
	if v, ok := bag.lookup("ISOSpeedRatings", "ISO"); ok {
		context.ISO = decimalValue(v)
	}
	if v, ok := bag.lookup("DateTimeOriginal"); ok {
		context.DateTimeOriginal = textValue(v)
	}

	return context, nil
}

// NormalizeCDNRecord reshapes a metadata record retrieved from the CDN
// (string values throughout) into the same context record. Values pass
// through nearly verbatim: only the focal length loses the whitespace
// inside its unit suffix, the exposure time gains its "s" suffix, and the
// software field runs through the same parsing rule as the EXIF path.
func NormalizeCDNRecord(meta map[string]string) (*Context, error) {
	model := meta["Model"]
	if model == "" {
		return nil, &MissingFieldError{Field: "Model"}
	}
	software := meta["Software"]
	if software == "" {
		return nil, &MissingFieldError{Field: "Software"}
	}

	context := &Context{
		Model:            model,
		LensModel:        meta["LensModel"],
		FNumber:          meta["FNumber"],
		ISO:              meta["ISO"],
		ExposureProgram:  meta["ExposureProgram"],
		DateTimeOriginal: meta["DateTimeOriginal"],
	}
	context.Software = normalizeSoftware(software, model)

	if v := meta["FocalLengthIn35mmFormat"]; v != "" {
		context.FocalLengthIn35mmFormat = strings.ReplaceAll(v, " ", "")
	}
	if v := meta["ExposureTime"]; v != "" {
		if !strings.HasSuffix(v, "s") {
			v += "s"
		}
		context.ExposureTime = v
	}

	return context, nil
}

// ConvertShutterSpeed renders an exposure time in seconds as a display
// string: sub-second values become the lowest-denominator fraction that
// round-trips the float ("0.004" gives "1/250s"), everything else the
// truncated integer second count ("2s").
func ConvertShutterSpeed(v float64) string {
	if v < 1 {
		num, den := limitDenominator(v, maxShutterDenominator)
		return strconv.FormatInt(num, 10) + "/" + strconv.FormatInt(den, 10) + "s"
	}
	return strconv.FormatInt(int64(v), 10) + "s"
}

// limitDenominator finds the closest fraction to v with a denominator not
// exceeding maxDen, walking the continued-fraction convergents of the exact
// binary value of v (the same approximation CPython's
// Fraction.limit_denominator performs).
func limitDenominator(v float64, maxDen int64) (int64, int64) {
	exact := new(big.Rat).SetFloat64(v)
	if exact == nil {
		return 0, 1
	}
	maxQ := big.NewInt(maxDen)
	if exact.Denom().Cmp(maxQ) <= 0 {
		return exact.Num().Int64(), exact.Denom().Int64()
	}

	n := new(big.Int).Set(exact.Num())
	d := new(big.Int).Set(exact.Denom())
	p0, q0 := big.NewInt(0), big.NewInt(1)
	p1, q1 := big.NewInt(1), big.NewInt(0)
	for {
		a := new(big.Int).Quo(n, d)
		q2 := new(big.Int).Add(q0, new(big.Int).Mul(a, q1))
		if q2.Cmp(maxQ) > 0 {
			break
		}
		p2 := new(big.Int).Add(p0, new(big.Int).Mul(a, p1))
		p0, q0, p1, q1 = p1, q1, p2, q2
		n, d = d, new(big.Int).Sub(n, new(big.Int).Mul(a, d))
	}

	k := new(big.Int).Quo(new(big.Int).Sub(maxQ, q0), q1)
	bound1 := new(big.Rat).SetFrac(
		new(big.Int).Add(p0, new(big.Int).Mul(k, p1)),
		new(big.Int).Add(q0, new(big.Int).Mul(k, q1)),
	)
	bound2 := new(big.Rat).SetFrac(p1, q1)

	diff1 := new(big.Rat).Sub(bound1, exact)
	diff1.Abs(diff1)
	diff2 := new(big.Rat).Sub(bound2, exact)
	diff2.Abs(diff2)
	if diff2.Cmp(diff1) <= 0 {
		return bound2.Num().Int64(), bound2.Denom().Int64()
	}
	return bound1.Num().Int64(), bound1.Denom().Int64()
}

func exposureProgramValue(v RawValue) string {
	switch v.Kind {
	case RawInteger:
		return exposureProgramLabel(v.Int)
	case RawFloat:
		return exposureProgramLabel(int64(v.Float))
	case RawText:
		// Already a label, e.g. on a second normalization pass.
		return v.Text
	}
	return exposureProgramLabels[0]
}

func exposureProgramLabel(code int64) string {
	if label, ok := exposureProgramLabels[code]; ok {
		return label
	}
	return exposureProgramLabels[0]
}

func focalLengthValue(v RawValue) string {
	switch v.Kind {
	case RawInteger:
		return strconv.FormatInt(v.Int, 10) + "mm"
	case RawFloat:
		return formatVersionNumber(v.Float) + "mm"
	case RawRational:
		if v.Den != 0 {
			return formatVersionNumber(float64(v.Num) / float64(v.Den)) + "mm"
		}
	case RawText:
		s := strings.ReplaceAll(v.Text, " ", "")
		if !strings.HasSuffix(s, "mm") {
			s += "mm"
		}
		return s
	}
	return ""
}

func exposureTimeValue(v RawValue) string {
	if seconds, ok := v.seconds(); ok {
		return ConvertShutterSpeed(seconds)
	}
	if v.Kind == RawText {
		if strings.HasSuffix(v.Text, "s") {
			return v.Text
		}
		if seconds, err := strconv.ParseFloat(v.Text, 64); err == nil {
			return ConvertShutterSpeed(seconds)
		}
		return v.Text
	}
	return ""
}

func textValue(v RawValue) string {
	switch v.Kind {
	case RawText:
		return v.Text
	case RawInteger:
		return strconv.FormatInt(v.Int, 10)
	case RawFloat:
		return formatVersionNumber(v.Float)
	case RawRational:
		if v.Den != 0 {
			return formatVersionNumber(float64(v.Num) / float64(v.Den))
		}
	}
	return ""
}

func decimalValue(v RawValue) string {
	switch v.Kind {
	case RawInteger:
		return strconv.FormatInt(v.Int, 10)
	case RawFloat:
		return formatVersionNumber(v.Float)
	case RawRational:
		if v.Den != 0 {
			return formatVersionNumber(float64(v.Num) / float64(v.Den))
		}
	case RawText:
		return v.Text
	}
	return ""
}

// formatVersionNumber renders a float the way the upstream tooling did:
// integral values keep one decimal place ("1.0"), everything else the
// shortest round-trip form ("1.2").
func formatVersionNumber(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return strconv.FormatFloat(v, 'f', 1, 64)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
