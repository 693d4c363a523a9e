package transform

import (
	"bytes"
	"encoding/xml"
	"io"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// CalibrationFormat is the serialization of a calibration file.
type CalibrationFormat string

const (
	// XMLFormat is the OpenCV FileStorage XML layout.
	XMLFormat = CalibrationFormat("xml")
	// YAMLFormat is the OpenCV FileStorage YAML layout.
	YAMLFormat = CalibrationFormat("yaml")
)

const (
	cameraMatrixSection = "camera_matrix"
	distortionSection   = "distortion_coefficients"
	imageWidthField     = "image_width"
	imageHeightField    = "image_height"

	numMatrixValues     = 9
	numDistortionValues = 5
)

// Calibration is the content of a calibration file.
type Calibration struct {
	// Matrix is the intrinsic matrix in row-major order.
	Matrix [9]float64
	// Distortion is (k1, k2, p1, p2, k3).
	Distortion [5]float64
	// Size is zero when the file does not record the image size.
	Size Size
}

// FormatFromPath guesses the format from the file extension. It returns "" when unknown.
func FormatFromPath(path string) CalibrationFormat {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xml":
		return XMLFormat
	case ".yml", ".yaml":
		return YAMLFormat
	default:
		return ""
	}
}

// DecodeCalibration reads a full calibration from r. An empty format is detected from the content.
// Errors about the content are returned as *ConfigParseError.
func DecodeCalibration(r io.Reader, format CalibrationFormat) (*Calibration, error) {
	buf, err := io.ReadAll(r)
	if err != nil {
		return nil, NewConfigParseError("", errors.Wrap(err, "error reading calibration data"))
	}
	if format == "" {
		format = sniffFormat(buf)
	}

	var raw *rawCalibration
	switch format {
	case XMLFormat:
		raw, err = decodeXML(buf)
	case YAMLFormat:
		raw, err = decodeYAML(buf)
	default:
		return nil, NewConfigParseError("", errors.Errorf("unknown calibration format %q", format))
	}
	if err != nil {
		return nil, err
	}
	return raw.toCalibration()
}

func sniffFormat(buf []byte) CalibrationFormat {
	if bytes.HasPrefix(bytes.TrimSpace(buf), []byte("<")) {
		return XMLFormat
	}
	return YAMLFormat
}

// rawSection is a matrix node before its values are parsed.
type rawSection struct {
	rows, cols *int
	hasData    bool
	tokens     []string
}

type rawCalibration struct {
	width, height *int
	cameraMatrix  *rawSection
	distortion    *rawSection
}

func (raw *rawCalibration) toCalibration() (*Calibration, error) {
	var calib Calibration
	matrix, err := raw.cameraMatrix.values(cameraMatrixSection, numMatrixValues)
	if err != nil {
		return nil, err
	}
	copy(calib.Matrix[:], matrix)
	if err := checkIntrinsicMatrix(calib.Matrix); err != nil {
		return nil, NewConfigParseError(cameraMatrixSection, err)
	}

	dist, err := raw.distortion.values(distortionSection, numDistortionValues)
	if err != nil {
		return nil, err
	}
	copy(calib.Distortion[:], dist)

	if raw.width != nil || raw.height != nil {
		if raw.width == nil {
			return nil, NewConfigParseError(imageWidthField, errors.New("image_height given without image_width"))
		}
		if raw.height == nil {
			return nil, NewConfigParseError(imageHeightField, errors.New("image_width given without image_height"))
		}
		if *raw.width <= 0 || *raw.height <= 0 {
			return nil, NewConfigParseError(imageWidthField,
				errors.Errorf("invalid image size (%d, %d)", *raw.width, *raw.height))
		}
		calib.Size = Size{Width: *raw.width, Height: *raw.height}
	}
	return &calib, nil
}

func (s *rawSection) values(section string, want int) ([]float64, error) {
	if s == nil {
		return nil, NewConfigParseError(section, errors.New("section is missing"))
	}
	if !s.hasData {
		return nil, NewConfigParseError(section, errors.New("data field is missing"))
	}
	if len(s.tokens) != want {
		return nil, NewConfigParseError(section, errors.Errorf("expected %d values, got %d", want, len(s.tokens)))
	}
	if s.rows != nil && s.cols != nil && *s.rows**s.cols != want {
		return nil, NewConfigParseError(section,
			errors.Errorf("declared shape %dx%d does not hold %d values", *s.rows, *s.cols, want))
	}
	out := make([]float64, 0, want)
	for i, tok := range s.tokens {
		v, err := parseDecimal(tok)
		if err != nil {
			return nil, NewConfigParseError(section, errors.Errorf("value %d (%q) is not a number", i, tok))
		}
		out = append(out, v)
	}
	return out, nil
}

// parseDecimal accepts plain decimal and exponent notation only. strconv alone would also take
// "NaN", "Inf", hex floats and digit separators.
func parseDecimal(tok string) (float64, error) {
	if strings.IndexFunc(tok, func(r rune) bool {
		return !strings.ContainsRune("0123456789+-.eE", r)
	}) >= 0 {
		return 0, errors.New("not a decimal number")
	}
	v, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errors.New("not a finite number")
	}
	return v, nil
}

// openCVStorage is the XML written by cv::FileStorage. The root element name is not checked.
type openCVStorage struct {
	ImageWidth   *int          `xml:"image_width"`
	ImageHeight  *int          `xml:"image_height"`
	CameraMatrix *openCVMatrix `xml:"camera_matrix"`
	Distortion   *openCVMatrix `xml:"distortion_coefficients"`
}

type openCVMatrix struct {
	Rows *int    `xml:"rows"`
	Cols *int    `xml:"cols"`
	Data *string `xml:"data"`
}

func (m *openCVMatrix) toRaw() *rawSection {
	if m == nil {
		return nil
	}
	s := &rawSection{rows: m.Rows, cols: m.Cols}
	if m.Data != nil {
		s.hasData = true
		s.tokens = strings.Fields(*m.Data)
	}
	return s
}

func decodeXML(buf []byte) (*rawCalibration, error) {
	var storage openCVStorage
	if err := xml.Unmarshal(buf, &storage); err != nil {
		return nil, NewConfigParseError("", errors.Wrap(err, "error parsing XML"))
	}
	return &rawCalibration{
		width:        storage.ImageWidth,
		height:       storage.ImageHeight,
		cameraMatrix: storage.CameraMatrix.toRaw(),
		distortion:   storage.Distortion.toRaw(),
	}, nil
}

// decodeYAML walks the node tree rather than decoding into structs so that OpenCV's
// "%YAML:1.0" header and "!!opencv-matrix" tags do not get in the way.
func decodeYAML(buf []byte) (*rawCalibration, error) {
	if bytes.HasPrefix(buf, []byte("%YAML")) {
		if i := bytes.IndexByte(buf, '\n'); i >= 0 {
			buf = buf[i+1:]
		} else {
			buf = nil
		}
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(buf, &doc); err != nil {
		return nil, NewConfigParseError("", errors.Wrap(err, "error parsing YAML"))
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return nil, NewConfigParseError("", errors.New("calibration YAML must be a mapping"))
	}
	root := doc.Content[0]

	raw := &rawCalibration{}
	var err error
	if raw.width, err = yamlInt(root, imageWidthField); err != nil {
		return nil, err
	}
	if raw.height, err = yamlInt(root, imageHeightField); err != nil {
		return nil, err
	}
	if raw.cameraMatrix, err = yamlSection(root, cameraMatrixSection); err != nil {
		return nil, err
	}
	if raw.distortion, err = yamlSection(root, distortionSection); err != nil {
		return nil, err
	}
	return raw, nil
}

func yamlLookup(mapping *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return mapping.Content[i+1]
		}
	}
	return nil
}

func yamlInt(mapping *yaml.Node, key string) (*int, error) {
	n := yamlLookup(mapping, key)
	if n == nil {
		return nil, nil
	}
	if n.Kind != yaml.ScalarNode {
		return nil, NewConfigParseError(key, errors.Errorf("%s: expected an integer", key))
	}
	v, err := strconv.Atoi(strings.TrimSpace(n.Value))
	if err != nil {
		return nil, NewConfigParseError(key, errors.Errorf("%s: %q is not an integer", key, n.Value))
	}
	return &v, nil
}

// inSection moves a field error up to the section that contains the field.
func inSection(section string, err error) error {
	var parseErr *ConfigParseError
	if errors.As(err, &parseErr) {
		return NewConfigParseError(section, parseErr.Err)
	}
	return NewConfigParseError(section, err)
}

func yamlSection(root *yaml.Node, key string) (*rawSection, error) {
	n := yamlLookup(root, key)
	if n == nil {
		return nil, nil
	}
	if n.Kind != yaml.MappingNode {
		return nil, NewConfigParseError(key, errors.New("section must be a mapping"))
	}
	s := &rawSection{}
	var err error
	if s.rows, err = yamlInt(n, "rows"); err != nil {
		return nil, inSection(key, err)
	}
	if s.cols, err = yamlInt(n, "cols"); err != nil {
		return nil, inSection(key, err)
	}
	data := yamlLookup(n, "data")
	if data == nil {
		return s, nil
	}
	s.hasData = true
	switch data.Kind {
	case yaml.ScalarNode:
		s.tokens = strings.Fields(data.Value)
	case yaml.SequenceNode:
		for _, item := range data.Content {
			if item.Kind != yaml.ScalarNode {
				return nil, NewConfigParseError(key, errors.New("data must be a list of numbers"))
			}
			s.tokens = append(s.tokens, item.Value)
		}
	default:
		return nil, NewConfigParseError(key, errors.New("data must be a list of numbers"))
	}
	return s, nil
}
