package cache

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image"

	"github.com/klauspost/compress/zstd"

	"github.com/LavishGent/pageturn/internal/types"
)

// Preview blobs are a fixed header followed by RGBA pixels, optionally
// zstd compressed:
//
//	[magic 'P'][flags][width uint32][height uint32][payload...]
const (
	blobMagic      byte = 'P'
	flagCompressed byte = 1 << 0
	blobHeaderSize      = 10
)

var errCorruptBlob = errors.New("cache: corrupt preview blob")

// blobCodec encodes preview images for the byte-oriented preview store.
// EncodeAll and DecodeAll are safe for concurrent use, so one codec serves
// every caller.
type blobCodec struct {
	enc      *zstd.Encoder
	dec      *zstd.Decoder
	compress bool
}

func newBlobCodec(compress bool) (*blobCodec, error) {
	c := &blobCodec{compress: compress}
	if !compress {
		return c, nil
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	c.enc = enc
	c.dec = dec
	return c, nil
}

func (c *blobCodec) encode(img *image.RGBA) []byte {
	b := img.Bounds()
	pix := tightPix(img)

	header := make([]byte, blobHeaderSize, blobHeaderSize+len(pix))
	header[0] = blobMagic
	binary.LittleEndian.PutUint32(header[2:6], uint32(b.Dx()))
	binary.LittleEndian.PutUint32(header[6:10], uint32(b.Dy()))

	if c.compress {
		header[1] = flagCompressed
		return c.enc.EncodeAll(pix, header)
	}
	return append(header, pix...)
}

func (c *blobCodec) decode(data []byte) (*image.RGBA, error) {
	if len(data) < blobHeaderSize || data[0] != blobMagic {
		return nil, errCorruptBlob
	}
	w := int(binary.LittleEndian.Uint32(data[2:6]))
	h := int(binary.LittleEndian.Uint32(data[6:10]))
	if w <= 0 || h <= 0 {
		return nil, errCorruptBlob
	}

	payload := data[blobHeaderSize:]
	if data[1]&flagCompressed != 0 {
		if c.dec == nil {
			return nil, errCorruptBlob
		}
		out, err := c.dec.DecodeAll(payload, make([]byte, 0, w*h*4))
		if err != nil {
			return nil, fmt.Errorf("%w: %w", errCorruptBlob, err)
		}
		payload = out
	}

	if len(payload) != w*h*4 {
		return nil, errCorruptBlob
	}
	return &image.RGBA{Pix: payload, Stride: w * 4, Rect: image.Rect(0, 0, w, h)}, nil
}

func (c *blobCodec) close() {
	if c.enc != nil {
		c.enc.Close()
	}
	if c.dec != nil {
		c.dec.Close()
	}
}

// tightPix returns the pixel rows of img without stride padding.
func tightPix(img *image.RGBA) []byte {
	b := img.Bounds()
	rowLen := b.Dx() * 4
	if img.Stride == rowLen && b.Min == (image.Point{}) {
		return img.Pix[:rowLen*b.Dy()]
	}
	out := make([]byte, 0, rowLen*b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		off := img.PixOffset(b.Min.X, y)
		out = append(out, img.Pix[off:off+rowLen]...)
	}
	return out
}

// previewKey length-prefixes the document so a document id containing the
// separator cannot share a key prefix with another document.
func previewKey(slot types.SlotKey) string {
	return fmt.Sprintf("%s%s/%d", documentPrefix(slot.Document), slot.Kind, slot.Unit)
}

func documentPrefix(doc types.DocumentID) string {
	return fmt.Sprintf("%d:%s/", len(doc), doc)
}
