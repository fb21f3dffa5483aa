package main

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	dicom "github.com/odincare/dcmstream"
	"github.com/odincare/dcmstream/dicomio"
	"github.com/odincare/dcmstream/dicomtag"
)

// dumper parses inputs and writes one listing per input. Listings are
// collected per input and written whole, so parallel inputs never interleave.
type dumper struct {
	cfg     *CLIConfig
	log     *logrus.Entry
	metrics *dicom.ReaderMetrics

	stop  *dicomtag.Tag
	query *dicom.Element

	outMu sync.Mutex
	out   io.Writer
}

func newDumper(cfg *CLIConfig, log *logrus.Entry, metrics *dicom.ReaderMetrics, out io.Writer) (*dumper, error) {
	d := &dumper{cfg: cfg, log: log, metrics: metrics, out: out}
	if cfg.StopTag != "" {
		tag, err := dicomtag.ParseTag(cfg.StopTag)
		if err != nil {
			return nil, err
		}
		d.stop = &tag
	}
	if cfg.Query != "" {
		q, err := dicom.ParseQuery(cfg.Query)
		if err != nil {
			return nil, err
		}
		d.query = q
	}
	if len(cfg.tagPatterns()) > 0 {
		// 提前检查pattern
		if _, err := dicom.NewTagFilter(dicom.NopObserver{}, cfg.tagPatterns()...); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// dumpAll dumps every input with at most cfg.Jobs in flight and returns the
// number that failed. A failing input does not cancel the others.
func (d *dumper) dumpAll(ctx context.Context, names []string) int {
	var failed atomic.Int32

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.cfg.Jobs)
	for _, name := range names {
		name := name
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			var buf bytes.Buffer
			matched, err := d.dumpInput(gctx, name, &buf)
			if err != nil {
				failed.Add(1)
				d.log.WithField("file", name).WithError(err).Error("dump failed")
			}
			if matched || err != nil {
				d.flush(&buf)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		d.log.WithError(err).Warn("dump interrupted")
	}
	return int(failed.Load())
}

func (d *dumper) flush(buf *bytes.Buffer) {
	d.outMu.Lock()
	defer d.outMu.Unlock()
	_, _ = buf.WriteTo(d.out)
}

// byteOrder is the order a source is opened with. Part 10 files always start
// little endian; the meta group may switch it later.
func (d *dumper) byteOrder() binary.ByteOrder {
	if !d.cfg.Raw {
		return binary.LittleEndian
	}
	if d.cfg.TransferSyntax != "" {
		order, _, err := dicomio.ParseTransferSyntaxUID(d.cfg.TransferSyntax)
		if err == nil {
			return order
		}
	}
	if d.cfg.BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

func openInput(name string) (io.ReadCloser, error) {
	if name == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	return os.Open(name)
}

// dumpInput parses one input into w. matched is false when a query is set
// and the data set does not satisfy it.
func (d *dumper) dumpInput(ctx context.Context, name string, w io.Writer) (matched bool, err error) {
	fmt.Fprintf(w, "# %s\n", name)
	order := d.byteOrder()

	if d.cfg.ChunkSize > 0 {
		return d.dumpIncremental(ctx, name, order, w)
	}

	var src dicomio.ByteSource
	if name == "-" {
		src = dicomio.NewStreamSource(os.Stdin, dicomio.WithByteOrder(order))
	} else {
		fs, err := dicomio.NewFileSource(name, dicomio.WithByteOrder(order))
		if err != nil {
			return false, err
		}
		defer fs.Close()
		src = fs
	}
	return d.dump(name, src, w)
}

// dumpIncremental feeds the input through a BufferSource in fixed size
// chunks. The parse suspends whenever it runs ahead of the data and resumes
// on the feeding goroutine.
func (d *dumper) dumpIncremental(ctx context.Context, name string, order binary.ByteOrder, w io.Writer) (bool, error) {
	in, err := openInput(name)
	if err != nil {
		return false, err
	}
	defer in.Close()

	src := dicomio.NewBufferSource(dicomio.WithByteOrder(order))
	var matched bool

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return feed(gctx, in, src, d.cfg.ChunkSize)
	})
	g.Go(func() error {
		var err error
		matched, err = d.dump(name, src, w)
		return err
	})
	err = g.Wait()
	return matched, err
}

// feed copies in to src chunk by chunk and finishes src when in is exhausted,
// fails, or ctx is done.
func feed(ctx context.Context, in io.Reader, src *dicomio.BufferSource, chunk int) error {
	defer src.Finish()
	buf := make([]byte, chunk)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := in.Read(buf)
		if n > 0 {
			if addErr := src.Add(buf[:n]); addErr != nil {
				return addErr
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func (d *dumper) newReader(name string, ts string) (*dicom.Reader, binary.ByteOrder, error) {
	opts := []dicom.ReaderOption{
		dicom.WithMetrics(d.metrics),
		dicom.WithLogger(d.log.WithField("file", name)),
	}
	if ts != "" {
		return dicom.NewReaderForTransferSyntax(ts, opts...)
	}
	opts = append(opts, dicom.WithExplicitVR(d.cfg.ExplicitVR))
	return dicom.NewReader(opts...), nil, nil
}

func (d *dumper) dump(name string, src dicomio.ByteSource, w io.Writer) (bool, error) {
	var (
		reader *dicom.Reader
		order  binary.ByteOrder
		err    error
	)
	if d.cfg.Raw {
		reader, order, err = d.newReader(name, d.cfg.TransferSyntax)
	} else {
		meta, herr := dicom.ParseFileHeader(src)
		if herr != nil {
			return false, fmt.Errorf("file meta: %w", herr)
		}
		for _, e := range meta {
			fmt.Fprintln(w, e)
		}
		ts, terr := (&dicom.DataSet{Elements: meta}).TransferSyntaxUID()
		if terr != nil {
			return false, terr
		}
		reader, order, err = d.newReader(name, ts)
	}
	if err != nil {
		return false, err
	}
	if order != nil {
		src.SetEndian(order)
	}

	var observer dicom.Observer = newPrinter(w, reader.Dictionary())
	if patterns := d.cfg.tagPatterns(); len(patterns) > 0 {
		filter, err := dicom.NewTagFilter(observer, patterns...)
		if err != nil {
			return false, err
		}
		observer = filter
	}
	var builder *dicom.DataSetBuilder
	if d.query != nil {
		builder = dicom.NewDataSetBuilder()
		observer = dicom.MultiObserver{observer, builder}
	}

	status, err := reader.Read(src, observer, d.stop)
	fmt.Fprintf(w, "# %s at offset %d\n", status, src.Position())
	if err != nil {
		return false, err
	}

	if builder == nil {
		return true, nil
	}
	match, _, err := dicom.Query(builder.DataSet(), d.query)
	return match, err
}
