package sos

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/algolion/battery-sos/internal/diag"
	"github.com/algolion/battery-sos/internal/driver"
	"github.com/algolion/battery-sos/internal/sample"
	"github.com/algolion/battery-sos/internal/tp"
)

// HistFirst is the number of completed TPs retained as baselines (spec §3
// "History H": "up to HIST_FIRST baseline entries").
const HistFirst = 3

// HistLast is the total number of completed TPs History retains: HistFirst
// baselines plus a FIFO of the most recent HistLast-HistFirst entries (spec
// §3, §4.F, bounded at <=10 per spec §5's static-allocation budget).
const HistLast = 10

// PageSize is the chunk size History.Commit / Load use against the flash
// collaborator (spec §4.F "page size 256 bytes").
const PageSize = 256

// magic identifies initialised storage (spec §3 "a magic byte array
// identifies initialised storage"; spec §6 "magic tag in bytes 1-7").
var magic = [7]byte{'S', 'O', 'S', 'H', 'I', 'S', 'T'}

// Record is the persisted, per-TP summary History stores: the shape,
// per-super-cell derived parameters, and fit validity, without the raw
// sample window (which Entry.Samples carries only transiently for one
// in-flight characterisation, per spec §3's "TP entry is overwritten in
// place").
type Record struct {
	StartTimeUS int64
	NTP         int32
	Baseline    bool
	Shapes      [sample.SupersPerModule]int32
	OK          [sample.SupersPerModule]bool
	Params      [sample.SupersPerModule][5]float64
}

// wireRecord is Record's fixed-width on-the-wire shape: encoding/binary
// cannot encode a bool or a non-fixed-width int directly into a stable wire
// size across platforms, so Commit/Load marshal through this layout.
type wireRecord struct {
	StartTimeUS int64
	NTP         int32
	Baseline    int32
	Shapes      [sample.SupersPerModule]int32
	OK          [sample.SupersPerModule]int32
	Params      [sample.SupersPerModule][5]float64
}

func toWire(r Record) wireRecord {
	w := wireRecord{StartTimeUS: r.StartTimeUS, NTP: r.NTP, Params: r.Params, Shapes: r.Shapes}
	if r.Baseline {
		w.Baseline = 1
	}
	for i, ok := range r.OK {
		if ok {
			w.OK[i] = 1
		}
	}
	return w
}

func fromWire(w wireRecord) Record {
	r := Record{StartTimeUS: w.StartTimeUS, NTP: w.NTP, Baseline: w.Baseline != 0, Params: w.Params, Shapes: w.Shapes}
	for i, v := range w.OK {
		r.OK[i] = v != 0
	}
	return r
}

// recordSize is the fixed wire size of one Record.
var recordSize = binary.Size(wireRecord{})

// NewRecord builds a Record from a completed TP entry and its
// characterisation results.
func NewRecord(e *tp.Entry, results []tp.SuperResult) Record {
	r := Record{StartTimeUS: e.StartTimeUS, NTP: int32(e.NTP), Baseline: e.Baseline}
	for k, res := range results {
		if k >= sample.SupersPerModule {
			break
		}
		r.Shapes[k] = int32(res.Shape)
		r.OK[k] = res.OK
		r.Params[k] = res.Params
	}
	return r
}

// History is the spec's History H: up to HistFirst baseline entries plus a
// FIFO of the most recent HistLast-HistFirst completed TPs, persisted
// across power cycles via the flash collaborator.
type History struct {
	Baselines []Record
	Recent    []Record
}

// Add appends a newly completed TP's Record: it becomes a baseline while
// fewer than HistFirst baselines exist, otherwise it is pushed onto the
// FIFO, evicting the oldest once full (spec §4.F).
func (h *History) Add(r Record) {
	if len(h.Baselines) < HistFirst {
		r.Baseline = true
		h.Baselines = append(h.Baselines, r)
		return
	}
	r.Baseline = false
	h.Recent = append(h.Recent, r)
	if max := HistLast - HistFirst; len(h.Recent) > max {
		h.Recent = h.Recent[len(h.Recent)-max:]
	}
}

// All returns baselines followed by the FIFO, oldest first.
func (h *History) All() []Record {
	out := make([]Record, 0, len(h.Baselines)+len(h.Recent))
	out = append(out, h.Baselines...)
	out = append(out, h.Recent...)
	return out
}

// encode serialises the header (magic + counts) and every record into a
// single flat byte buffer, ready to be chunked into PageSize pages.
func (h *History) encode() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(1) // initialised flag, byte 0
	buf.Write(magic[:])
	if err := binary.Write(&buf, binary.LittleEndian, int32(len(h.Baselines))); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.LittleEndian, int32(len(h.Recent))); err != nil {
		return nil, err
	}
	for _, r := range append(append([]Record{}, h.Baselines...), h.Recent...) {
		if err := binary.Write(&buf, binary.LittleEndian, toWire(r)); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// Commit writes the whole history to the flash collaborator in PageSize
// chunks (spec §4.F "the whole history is written to the storage
// collaborator in page-sized chunks"). Storage I/O failures are reported
// via the diagnostic ring and do not abort the pipeline (spec §4.H).
func (h *History) Commit(w driver.FlashWriter, d *diag.Ring) error {
	buf, err := h.encode()
	if err != nil {
		return fmt.Errorf("sos: encode history: %w", err)
	}
	for off := 0; off < len(buf); off += PageSize {
		end := off + PageSize
		if end > len(buf) {
			end = len(buf)
		}
		if !w.FlashWrite(uint32(off), buf[off:end]) {
			if d != nil {
				d.Record(diag.CodeStorageFailure, diag.KindStorageIO, diag.SeverityError,
					"sos.History.Commit", fmt.Sprintf("flash write failed at page offset %d", off))
			}
			return fmt.Errorf("sos: flash write at offset %d failed", off)
		}
	}
	return nil
}

// header byte-length: 1 (init flag) + 7 (magic) + 4 (nBaseline) + 4 (nRecent).
const headerSize = 1 + len(magic) + 4 + 4

// Load reads History back from the flash collaborator. If the magic tag is
// absent (uninitialised storage), Load returns a zero-value History and no
// error — this is the normal first-power-on case, not a failure.
func Load(r driver.FlashReader, d *diag.Ring) (*History, error) {
	header := make([]byte, headerSize)
	if !r.FlashRead(0, header) {
		if d != nil {
			d.Record(diag.CodeStorageFailure, diag.KindStorageIO, diag.SeverityWarn,
				"sos.Load", "flash read of history header failed")
		}
		return &History{}, nil
	}
	if header[0] != 1 || !bytes.Equal(header[1:1+len(magic)], magic[:]) {
		return &History{}, nil
	}
	nBaseline := int32(binary.LittleEndian.Uint32(header[1+len(magic):]))
	nRecent := int32(binary.LittleEndian.Uint32(header[1+len(magic)+4:]))
	if nBaseline < 0 || nRecent < 0 || nBaseline > HistFirst || nRecent > HistLast-HistFirst {
		if d != nil {
			d.Record(diag.CodeStorageFailure, diag.KindStorageIO, diag.SeverityError,
				"sos.Load", fmt.Sprintf("implausible history header counts: baseline=%d recent=%d", nBaseline, nRecent))
		}
		return &History{}, nil
	}
	total := int(nBaseline + nRecent)

	payload := make([]byte, total*recordSize)
	for off := 0; off < len(payload); off += PageSize {
		end := off + PageSize
		if end > len(payload) {
			end = len(payload)
		}
		if !r.FlashRead(uint32(headerSize+off), payload[off:end]) {
			if d != nil {
				d.Record(diag.CodeStorageFailure, diag.KindStorageIO, diag.SeverityError,
					"sos.Load", fmt.Sprintf("flash read failed at payload offset %d", off))
			}
			return &History{}, fmt.Errorf("sos: flash read at offset %d failed", off)
		}
	}

	h := &History{}
	rd := bytes.NewReader(payload)
	for i := 0; i < total; i++ {
		var w wireRecord
		if err := binary.Read(rd, binary.LittleEndian, &w); err != nil {
			return &History{}, fmt.Errorf("sos: decode record %d: %w", i, err)
		}
		rec := fromWire(w)
		if i < int(nBaseline) {
			h.Baselines = append(h.Baselines, rec)
		} else {
			h.Recent = append(h.Recent, rec)
		}
	}
	return h, nil
}
