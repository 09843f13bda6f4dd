package model

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/fumi-engineer/siamese/layer"
)

// Archive layout:
//
//	[magic "SIAM"][manifest length uint32 LE][manifest YAML][zstd(float32 LE params)]
//
// Parameters are written in Siamese.Parameters order.
const (
	archiveMagic   = "SIAM"
	archiveVersion = 1

	maxManifestSize = 1 << 20
)

// ErrBadArchive is wrapped by every Load error caused by the archive content.
var ErrBadArchive = errors.New("bad model archive")

type manifest struct {
	Version int            `yaml:"version"`
	Model   Config         `yaml:"model"`
	Layers  []layer.Config `yaml:"layers"`
	Params  []int          `yaml:"params"` // numel per parameter tensor
}

// Save writes m to w.
func Save(w io.Writer, m *Siamese) error {
	man := manifest{Version: archiveVersion, Model: m.cfg}
	for _, l := range m.Layers() {
		man.Layers = append(man.Layers, l.Config())
	}
	params := m.Parameters()
	for _, p := range params {
		man.Params = append(man.Params, p.Shape().Numel())
	}

	body, err := yaml.Marshal(man)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if _, err := io.WriteString(w, archiveMagic); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(len(body))); err != nil {
		return err
	}
	if _, err := w.Write(body); err != nil {
		return err
	}

	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	for _, p := range params {
		if err := binary.Write(enc, binary.LittleEndian, p.DataPtr()); err != nil {
			enc.Close()
			return fmt.Errorf("failed to write parameters: %w", err)
		}
	}
	return enc.Close()
}

// Load reads a model written by Save. Every layer is rebuilt from its saved
// config; the options supply the runtime logger.
func Load(r io.Reader, opts ...Option) (*Siamese, error) {
	magic := make([]byte, len(archiveMagic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, fmt.Errorf("%w: read magic: %w", ErrBadArchive, err)
	}
	if !bytes.Equal(magic, []byte(archiveMagic)) {
		return nil, fmt.Errorf("%w: magic %q", ErrBadArchive, magic)
	}

	var size uint32
	if err := binary.Read(r, binary.LittleEndian, &size); err != nil {
		return nil, fmt.Errorf("%w: read manifest length: %w", ErrBadArchive, err)
	}
	if size > maxManifestSize {
		return nil, fmt.Errorf("%w: manifest of %d bytes exceeds %d", ErrBadArchive, size, maxManifestSize)
	}
	body := make([]byte, size)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("%w: read manifest: %w", ErrBadArchive, err)
	}
	var man manifest
	if err := yaml.Unmarshal(body, &man); err != nil {
		return nil, fmt.Errorf("%w: parse manifest: %w", ErrBadArchive, err)
	}
	if man.Version != archiveVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrBadArchive, man.Version)
	}

	m, err := fromManifest(man, opts)
	if err != nil {
		return nil, err
	}

	params := m.Parameters()
	if len(params) != len(man.Params) {
		return nil, fmt.Errorf("%w: %d parameter tensors, manifest lists %d", ErrBadArchive, len(params), len(man.Params))
	}
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	for i, p := range params {
		if p.Shape().Numel() != man.Params[i] {
			return nil, fmt.Errorf("%w: parameter %d has %d values, manifest lists %d", ErrBadArchive, i, p.Shape().Numel(), man.Params[i])
		}
		if err := binary.Read(dec, binary.LittleEndian, p.DataPtr()); err != nil {
			return nil, fmt.Errorf("%w: read parameter %d: %w", ErrBadArchive, i, err)
		}
	}
	return m, nil
}

func fromManifest(man manifest, opts []Option) (*Siamese, error) {
	if err := man.Model.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadArchive, err)
	}
	if err := checkLayerShapes(man.Model, man.Layers); err != nil {
		return nil, err
	}
	m := &Siamese{cfg: man.Model, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(m)
	}

	layers := make([]layer.Serializable, len(man.Layers))
	for i, lc := range man.Layers {
		l, err := layer.FromConfig(lc, layer.WithLogger(m.logger), layer.WithStrict(man.Model.Strict))
		if err != nil {
			return nil, fmt.Errorf("%w: layer %d: %w", ErrBadArchive, i, err)
		}
		layers[i] = l
	}

	var ok bool
	if len(layers) == 6 {
		m.encIn, ok = layers[0].(*layer.Linear)
		if ok {
			m.encAct, ok = layers[1].(*layer.SiLU)
		}
		if ok {
			m.encOut, ok = layers[2].(*layer.Linear)
		}
		if ok {
			m.distance, ok = layers[3].(*layer.Distance)
		}
		if ok {
			m.head, ok = layers[4].(*layer.Linear)
		}
		if ok {
			m.headAct, ok = layers[5].(*layer.Sigmoid)
		}
	}
	if !ok {
		return nil, fmt.Errorf("%w: layer graph does not match a siamese model", ErrBadArchive)
	}
	return m, nil
}

// checkLayerShapes compares the saved layer configs with the graph cfg
// describes before any layer allocates weights.
func checkLayerShapes(cfg Config, layers []layer.Config) error {
	want := []struct {
		class     string
		in, units int
	}{
		{layer.ClassLinear, cfg.InputDim, cfg.HiddenDim},
		{layer.ClassSiLU, 0, 0},
		{layer.ClassLinear, cfg.HiddenDim, cfg.EmbedDim},
		{layer.ClassL1Dist, 0, 0},
		{layer.ClassLinear, cfg.EmbedDim, 1},
		{layer.ClassSigmoid, 0, 0},
	}
	if len(layers) != len(want) {
		return fmt.Errorf("%w: %d layers, a siamese model has %d", ErrBadArchive, len(layers), len(want))
	}
	for i, w := range want {
		lc := layers[i]
		if lc.ClassName != w.class || lc.InputDim != w.in || lc.Units != w.units {
			return fmt.Errorf("%w: layer %d is %s(%d->%d), want %s(%d->%d)",
				ErrBadArchive, i, lc.ClassName, lc.InputDim, lc.Units, w.class, w.in, w.units)
		}
	}
	return nil
}
