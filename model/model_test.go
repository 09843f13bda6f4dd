package model

import (
	"bytes"
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gopkg.in/yaml.v3"

	"github.com/fumi-engineer/siamese/layer"
	"github.com/fumi-engineer/siamese/tensor"
)

func randInput(batch, dim int) *tensor.Tensor {
	return tensor.RandnWithStd(tensor.NewShape(batch, dim), tensor.F32, 1)
}

func TestConfigPresets(t *testing.T) {
	require.NoError(t, Default().Validate())
	require.NoError(t, Tiny().Validate())

	cfg := Tiny()
	// 16*32+32 + 32*8+8 + 8+1
	assert.Equal(t, 544+264+9, cfg.TotalParams())

	m := NewTiny()
	n := 0
	for _, p := range m.Parameters() {
		n += p.Shape().Numel()
	}
	assert.Equal(t, cfg.TotalParams(), n)
}

func TestConfigValidate(t *testing.T) {
	for name, mutate := range map[string]func(*Config){
		"input_dim":   func(c *Config) { c.InputDim = 0 },
		"hidden_dim":  func(c *Config) { c.HiddenDim = -1 },
		"embed_dim":   func(c *Config) { c.EmbedDim = 0 },
		"concurrency": func(c *Config) { c.Concurrency = -2 },
		"too large":   func(c *Config) { c.InputDim = 70368744177664; c.HiddenDim = 1 << 20 },
	} {
		t.Run(name, func(t *testing.T) {
			cfg := Tiny()
			mutate(&cfg)
			assert.ErrorContains(t, cfg.Validate(), name)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "model.yaml")
	require.NoError(t, os.WriteFile(path, []byte("input_dim: 12\nembed_dim: 4\nstrict: true\n"), 0600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.InputDim)
	assert.Equal(t, 4, cfg.EmbedDim)
	assert.Equal(t, Default().HiddenDim, cfg.HiddenDim)
	assert.True(t, cfg.Strict)

	_, err = LoadConfig(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("concurrency: -1\n"), 0600))
	_, err = LoadConfig(bad)
	assert.ErrorContains(t, err, "concurrency")
}

func TestScoreShapeAndRange(t *testing.T) {
	m := NewTiny()
	a := randInput(3, 16)
	b := randInput(3, 16)

	d, err := m.Distance(a, b)
	require.NoError(t, err)
	assert.True(t, d.Shape().Equal(tensor.NewShape(3, 8)))
	for _, v := range d.Data() {
		assert.GreaterOrEqual(t, v, float32(0))
	}

	s, err := m.Score(a, b)
	require.NoError(t, err)
	require.True(t, s.Shape().Equal(tensor.NewShape(3, 1)))
	for _, v := range s.Data() {
		assert.Greater(t, v, float32(0))
		assert.Less(t, v, float32(1))
	}
}

func TestIdenticalInputsHaveZeroDistance(t *testing.T) {
	m := NewTiny()
	a := randInput(2, 16)

	d, err := m.Distance(a, a.Clone())
	require.NoError(t, err)
	assert.Equal(t, make([]float32, 16), d.Data())
}

func TestEmbedRejectsWrongWidth(t *testing.T) {
	m := NewTiny()
	_, err := m.Embed(randInput(1, 15))
	assert.ErrorIs(t, err, tensor.ErrShapeMismatch)

	_, err = m.Score(nil, randInput(1, 16))
	assert.ErrorIs(t, err, layer.ErrNoInput)
}

func TestScoreEmbeddingsFallback(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	m, err := New(Tiny(), WithLogger(zap.New(core)))
	require.NoError(t, err)

	emb := tensor.Ones(tensor.NewShape(1, 8), tensor.F32)
	s, err := m.ScoreEmbeddings(emb, layer.TextList{"validation_embedding"})
	require.NoError(t, err)
	assert.True(t, s.Shape().Equal(tensor.NewShape(1, 1)))
	assert.Equal(t, 1, logs.Len())

	zero, err := m.ScoreEmbeddings(emb, layer.TensorOperand{T: emb.Clone()})
	require.NoError(t, err)
	assert.Equal(t, zero.Data(), s.Data())
}

func TestScoreEmbeddingsRejectsWrongWidth(t *testing.T) {
	m := NewTiny()

	_, err := m.ScoreEmbeddings(tensor.Ones(tensor.NewShape(1, 5), tensor.F32), layer.Text("x"))
	assert.ErrorIs(t, err, tensor.ErrShapeMismatch)

	_, err = m.ScoreEmbeddings(tensor.Ones(tensor.NewShape(1, 5), tensor.F32), layer.TensorOperand{T: tensor.Ones(tensor.NewShape(1, 5), tensor.F32)})
	assert.ErrorIs(t, err, tensor.ErrShapeMismatch)

	_, err = m.ScoreEmbeddings(nil, nil)
	assert.ErrorIs(t, err, layer.ErrNoInput)
}

func TestScoreEmbeddingsStrict(t *testing.T) {
	cfg := Tiny()
	cfg.Strict = true
	m, err := New(cfg)
	require.NoError(t, err)

	_, err = m.ScoreEmbeddings(tensor.Ones(tensor.NewShape(1, 8), tensor.F32), layer.Text("x"))
	assert.ErrorIs(t, err, layer.ErrMalformedInput)
}

func TestScoreBatchMatchesScore(t *testing.T) {
	cfg := Tiny()
	cfg.Concurrency = 2
	m, err := New(cfg)
	require.NoError(t, err)

	anchor := randInput(1, 16)
	candidates := make([]*tensor.Tensor, 7)
	for i := range candidates {
		candidates[i] = randInput(1, 16)
	}

	got, err := m.ScoreBatch(context.Background(), anchor, candidates)
	require.NoError(t, err)
	require.Len(t, got, len(candidates))
	for i, c := range candidates {
		want, err := m.Score(anchor, c)
		require.NoError(t, err)
		assert.InDeltaSlice(t, want.Data(), got[i].Data(), 1e-6, "candidate %d", i)
	}
}

func TestScoreBatchErrors(t *testing.T) {
	m := NewTiny()
	anchor := randInput(1, 16)

	_, err := m.ScoreBatch(context.Background(), anchor, []*tensor.Tensor{randInput(1, 16), randInput(1, 3)})
	assert.ErrorIs(t, err, tensor.ErrShapeMismatch)
	assert.ErrorContains(t, err, "candidate 1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = m.ScoreBatch(ctx, anchor, []*tensor.Tensor{randInput(1, 16)})
	assert.ErrorIs(t, err, context.Canceled)

	_, err = m.ScoreBatch(context.Background(), randInput(1, 2), nil)
	assert.ErrorContains(t, err, "embed anchor")
}

func TestArchiveRoundTrip(t *testing.T) {
	m := NewTiny()
	var buf bytes.Buffer
	require.NoError(t, Save(&buf, m))

	core, logs := observer.New(zapcore.WarnLevel)
	loaded, err := Load(&buf, WithLogger(zap.New(core)))
	require.NoError(t, err)

	assert.Equal(t, m.Config(), loaded.Config())
	assert.Equal(t, m.DistanceLayer().Name(), loaded.DistanceLayer().Name())
	for i, l := range m.Layers() {
		assert.Equal(t, l.Config(), loaded.Layers()[i].Config())
	}

	a, b := randInput(2, 16), randInput(2, 16)
	want, err := m.Score(a, b)
	require.NoError(t, err)
	got, err := loaded.Score(a, b)
	require.NoError(t, err)
	assert.Equal(t, want.Data(), got.Data())

	_, err = loaded.ScoreEmbeddings(tensor.Ones(tensor.NewShape(1, 8), tensor.F32), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, logs.Len(), "loaded distance layer must log through the supplied logger")
}

func TestArchiveRejectsCorruptInput(t *testing.T) {
	_, err := Load(bytes.NewReader([]byte("NOPE")))
	assert.ErrorIs(t, err, ErrBadArchive)

	_, err = Load(bytes.NewReader(nil))
	assert.ErrorIs(t, err, ErrBadArchive)

	var buf bytes.Buffer
	require.NoError(t, Save(&buf, NewTiny()))
	truncated := buf.Bytes()[:buf.Len()-8]
	_, err = Load(bytes.NewReader(truncated))
	assert.Error(t, err)

	var header bytes.Buffer
	header.WriteString(archiveMagic)
	require.NoError(t, binary.Write(&header, binary.LittleEndian, uint32(maxManifestSize+1)))
	_, err = Load(&header)
	assert.ErrorIs(t, err, ErrBadArchive)
	assert.ErrorContains(t, err, "exceeds")
}

// rawArchive frames man the way Save does, without a parameter stream.
func rawArchive(t *testing.T, man manifest) *bytes.Reader {
	t.Helper()
	body, err := yaml.Marshal(man)
	require.NoError(t, err)
	var buf bytes.Buffer
	buf.WriteString(archiveMagic)
	require.NoError(t, binary.Write(&buf, binary.LittleEndian, uint32(len(body))))
	buf.Write(body)
	return bytes.NewReader(buf.Bytes())
}

func tinyManifest() manifest {
	m := NewTiny()
	man := manifest{Version: archiveVersion, Model: m.Config()}
	for _, l := range m.Layers() {
		man.Layers = append(man.Layers, l.Config())
	}
	return man
}

func TestArchiveRejectsOversizedLayers(t *testing.T) {
	for name, mutate := range map[string]func(*manifest){
		"huge linear": func(man *manifest) { man.Layers[0].InputDim = 70368744177664 },
		"wrong units": func(man *manifest) { man.Layers[2].Units = 9 },
		"wrong class": func(man *manifest) { man.Layers[1].ClassName = layer.ClassSigmoid },
		"single layer": func(man *manifest) {
			man.Layers = []layer.Config{{ClassName: layer.ClassLinear, InputDim: 70368744177664, Units: 4}}
		},
		"huge model": func(man *manifest) {
			man.Model.InputDim = 70368744177664
			man.Layers[0].InputDim = 70368744177664
		},
	} {
		t.Run(name, func(t *testing.T) {
			man := tinyManifest()
			mutate(&man)
			_, err := Load(rawArchive(t, man))
			assert.ErrorIs(t, err, ErrBadArchive)
		})
	}
}
