// Package main is the l1dist CLI: it runs the L1 distance layer on embedding
// files and creates, loads and scores siamese model archives.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/fumi-engineer/siamese/internal/logutil"
	"github.com/fumi-engineer/siamese/layer"
	"github.com/fumi-engineer/siamese/model"
	"github.com/fumi-engineer/siamese/tensor"
)

var version = "dev"

var errUsage = errors.New("usage")

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "l1dist: %v\n", err)
		}
		printUsage(os.Stderr)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	switch args[0] {
	case "distance":
		return runDistance(args[1:], stdout)
	case "init":
		return runInit(args[1:], stdout)
	case "score":
		return runScore(args[1:], stdout)
	case "version", "--version", "-v":
		fmt.Fprintf(stdout, "l1dist version %s\n", version)
		return nil
	case "help", "--help", "-h":
		printUsage(stdout)
		return nil
	default:
		return fmt.Errorf("unknown command %q: %w", args[0], errUsage)
	}
}

func runDistance(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("distance", flag.ContinueOnError)
	aPath := fs.String("a", "", "first embedding file (YAML or JSON)")
	bPath := fs.String("b", "", "second embedding file; omit to exercise the absent-operand fallback")
	strict := fs.Bool("strict", false, "reject malformed calls instead of returning zeros")
	debug := fs.Bool("debug", false, "enable debug logging")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *aPath == "" {
		return fmt.Errorf("-a is required: %w", errUsage)
	}

	logger := logutil.Must(*debug)
	defer func() { _ = logger.Sync() }()

	a, err := readTensor(*aPath)
	if err != nil {
		return err
	}
	in := layer.Pair{A: a}
	if *bPath != "" {
		b, err := readTensor(*bPath)
		if err != nil {
			return err
		}
		in.B = layer.TensorOperand{T: b}
	}

	d := layer.NewDistance(layer.WithLogger(logger), layer.WithStrict(*strict))
	out, err := d.Call(in)
	if err != nil {
		return err
	}
	return writeTensor(stdout, out)
}

func runInit(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	configPath := fs.String("config", "", "model config file (YAML); defaults apply when omitted")
	outPath := fs.String("out", "model.siam", "archive path to write")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg := model.Default()
	if *configPath != "" {
		loaded, err := model.LoadConfig(*configPath)
		if err != nil {
			return err
		}
		cfg = *loaded
	}
	m, err := model.New(cfg)
	if err != nil {
		return err
	}

	f, err := os.Create(*outPath)
	if err != nil {
		return err
	}
	if err := model.Save(f, m); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "wrote %s (%d parameters)\n", *outPath, cfg.TotalParams())
	return nil
}

func runScore(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("score", flag.ContinueOnError)
	modelPath := fs.String("model", "", "model archive written by init")
	aPath := fs.String("a", "", "first input file")
	bPath := fs.String("b", "", "second input file")
	debug := fs.Bool("debug", false, "enable debug logging")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *modelPath == "" || *aPath == "" || *bPath == "" {
		return fmt.Errorf("-model, -a and -b are required: %w", errUsage)
	}

	logger := logutil.Must(*debug)
	defer func() { _ = logger.Sync() }()

	f, err := os.Open(*modelPath)
	if err != nil {
		return err
	}
	defer f.Close()
	m, err := model.Load(f, model.WithLogger(logger))
	if err != nil {
		return err
	}
	logger.Debug("model loaded", zap.String("path", *modelPath), zap.String("distance_layer", m.DistanceLayer().Name()))

	a, err := readTensor(*aPath)
	if err != nil {
		return err
	}
	b, err := readTensor(*bPath)
	if err != nil {
		return err
	}
	s, err := m.Score(a, b)
	if err != nil {
		return err
	}
	return writeTensor(stdout, s)
}

// tensorFile is the on-disk form of a tensor. A bare list of numbers is also
// accepted and read as a vector.
type tensorFile struct {
	Shape []int     `yaml:"shape"`
	Data  []float32 `yaml:"data"`
}

func readTensor(path string) (*tensor.Tensor, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var tf tensorFile
	var flat []float32
	if err := yaml.Unmarshal(raw, &flat); err == nil {
		tf.Data = flat
	} else if err := yaml.Unmarshal(raw, &tf); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if len(tf.Shape) == 0 {
		tf.Shape = []int{len(tf.Data)}
	}
	for _, d := range tf.Shape {
		if d < 0 {
			return nil, fmt.Errorf("%s: %w: negative dimension in shape %v", path, tensor.ErrShapeMismatch, tf.Shape)
		}
	}

	shape := tensor.NewShape(tf.Shape...)
	if shape.Numel() != len(tf.Data) {
		return nil, fmt.Errorf("%s: %w: shape %v holds %d values, file has %d", path, tensor.ErrShapeMismatch, shape, shape.Numel(), len(tf.Data))
	}
	return tensor.FromSlice(tf.Data, shape), nil
}

func writeTensor(w io.Writer, t *tensor.Tensor) error {
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	return enc.Encode(tensorFile{Shape: t.Shape().Dims(), Data: t.Data()})
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `Usage: l1dist <command> [flags]

Commands:
  distance  -a FILE [-b FILE] [-strict] [-debug]   element-wise |a - b|
  init      [-config FILE] [-out FILE]             write a randomly initialized model archive
  score     -model FILE -a FILE -b FILE [-debug]   similarity of two raw inputs
  version                                          print version
`)
}
