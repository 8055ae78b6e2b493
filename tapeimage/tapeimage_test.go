// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package tapeimage

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/danjacques/wellstream/source"
	"github.com/danjacques/wellstream/stream"
	"github.com/danjacques/wellstream/stream/streamtest"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

// closeCounter is a leaf that counts how many times it has been closed.
type closeCounter struct {
	*source.Memory
	closes int
}

func (c *closeCounter) Close() error {
	c.closes++
	return c.Memory.Close()
}

func open(data []byte) *Stream {
	s, err := New(source.NewMemoryWith(data))
	Expect(err).ToNot(HaveOccurred())
	return s
}

// readAll drains s with an awkward buffer size, asserting that every read
// succeeds.
func readAll(s *Stream) []byte {
	var out []byte
	buf := make([]byte, 7)
	for {
		n, st, err := s.ReadInto(buf)
		Expect(err).ToNot(HaveOccurred())
		out = append(out, buf[:n]...)

		if st == stream.EOF || (n < int64(len(buf)) && s.Eof()) {
			return out
		}
		Expect(st == stream.Ok || st == stream.TryRecovery).To(BeTrue())
	}
}

func payload(start, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = byte(start + i)
	}
	return out
}

var _ = Describe("Stream", func() {
	// The minimal file: one record of eight bytes, then a tape mark.
	minimal := []byte{
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x14, 0x00, 0x00, 0x00,
		0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08,
		0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x20, 0x00, 0x00, 0x00,
	}

	It("rejects a nil inner stream", func() {
		_, err := New(nil)
		Expect(stream.KindOf(err)).To(Equal(stream.KindInvalidArgs))
	})

	Context("round trips", func() {
		It("reads the minimal file", func() {
			s := open(minimal)
			defer s.Close()

			buf := make([]byte, 10)
			n, st, err := s.ReadInto(buf)

			Expect(err).ToNot(HaveOccurred())
			Expect(n).To(Equal(int64(8)))
			Expect(st).To(Equal(stream.EOF))
			Expect(buf[:8]).To(Equal([]byte{1, 2, 3, 4, 5, 6, 7, 8}))

			Expect(s.Tell()).To(Equal(int64(8)))
			Expect(s.Eof()).To(BeTrue())
		})

		It("agrees with the test builder about the format", func() {
			Expect(streamtest.TapeImage(0, []byte{1, 2, 3, 4, 5, 6, 7, 8})).
				To(Equal(minimal))
		})

		It("concatenates record payloads in file order", func() {
			a, b, c := payload(0, 8), payload(8, 5), payload(13, 13)
			s := open(streamtest.TapeImage(0, a, b, c))
			defer s.Close()

			var want []byte
			want = append(want, a...)
			want = append(want, b...)
			want = append(want, c...)
			Expect(readAll(s)).To(Equal(want))
			Expect(s.Tell()).To(Equal(int64(len(want))))
		})

		It("skips over empty records", func() {
			a, c := payload(0, 8), payload(8, 4)
			s := open(streamtest.TapeImage(0, a, nil, c))
			defer s.Close()

			Expect(readAll(s)).To(Equal(append(append([]byte{}, a...), c...)))
		})

		It("treats a zero-length read as a no-op", func() {
			s := open(minimal)
			defer s.Close()

			n, st, err := s.ReadInto(nil)
			Expect(err).ToNot(HaveOccurred())
			Expect(n).To(Equal(int64(0)))
			Expect(st).To(Equal(stream.Ok))
			Expect(s.Tell()).To(Equal(int64(0)))
		})

		It("keeps reporting EOF once the mark is crossed", func() {
			s := open(minimal)
			defer s.Close()

			readAll(s)
			Expect(s.Eof()).To(BeTrue())

			n, st, err := s.ReadInto(make([]byte, 4))
			Expect(err).ToNot(HaveOccurred())
			Expect(n).To(Equal(int64(0)))
			Expect(st).To(Equal(stream.EOF))
		})

		It("accepts a stream with no trailing mark", func() {
			a, b := payload(0, 8), payload(8, 8)
			data, _ := streamtest.TapeImageRecords(0, a, b)
			s := open(data)
			defer s.Close()

			Expect(readAll(s)).To(Equal(append(append([]byte{}, a...), b...)))
			Expect(s.Eof()).To(BeTrue())
		})
	})

	Context("addressing", func() {
		It("tracks logical and physical positions", func() {
			s := open(minimal)
			defer s.Close()

			buf := make([]byte, 5)
			_, _, err := s.ReadInto(buf)
			Expect(err).ToNot(HaveOccurred())

			Expect(s.Tell()).To(Equal(int64(5)))
			Expect(s.Ptell()).To(Equal(int64(17)))
		})

		It("treats the open position as the logical origin", func() {
			a, b := payload(10, 8), payload(18, 6)
			data := append([]byte{0xDE, 0xAD, 0xBE}, streamtest.TapeImage(3, a, b)...)

			m := source.NewMemoryWith(data)
			Expect(m.Seek(3)).To(Succeed())

			s, err := New(m)
			Expect(err).ToNot(HaveOccurred())
			defer s.Close()

			Expect(s.Tell()).To(Equal(int64(0)))
			Expect(readAll(s)).To(Equal(append(append([]byte{}, a...), b...)))

			ptell, err := s.Ptell()
			Expect(err).ToNot(HaveOccurred())
			mtell, err := m.Tell()
			Expect(err).ToNot(HaveOccurred())
			Expect(ptell).To(Equal(mtell))
		})
	})

	Context("seeking", func() {
		a, b, c := payload(0, 8), payload(8, 8), payload(16, 8)
		var data, want []byte

		BeforeEach(func() {
			data = streamtest.TapeImage(0, a, b, c)
			want = append(append(append([]byte{}, a...), b...), c...)
		})

		It("rejects negative offsets", func() {
			s := open(data)
			defer s.Close()

			Expect(stream.KindOf(s.Seek(-1))).To(Equal(stream.KindInvalidArgs))
		})

		It("rejects offsets beyond the 4 GiB format limit", func() {
			s := open(data)
			defer s.Close()

			err := s.Seek(int64(1) << 32)
			Expect(stream.KindOf(err)).To(Equal(stream.KindInvalidArgs))
			Expect(err.Error()).To(ContainSubstring("4GB"))
		})

		It("positions every logical offset correctly on a cold index", func() {
			for n := 0; n < len(want); n++ {
				s := open(data)

				Expect(s.Seek(int64(n))).To(Succeed())
				Expect(s.Tell()).To(Equal(int64(n)))

				buf := make([]byte, 1)
				cnt, _, err := s.ReadInto(buf)
				Expect(err).ToNot(HaveOccurred())
				Expect(cnt).To(Equal(int64(1)))
				Expect(buf[0]).To(Equal(want[n]))

				Expect(s.Close()).To(Succeed())
			}
		})

		It("seeks backwards through the index", func() {
			s := open(data)
			defer s.Close()

			readAll(s)

			Expect(s.Seek(2)).To(Succeed())
			Expect(s.Tell()).To(Equal(int64(2)))

			buf := make([]byte, 3)
			_, _, err := s.ReadInto(buf)
			Expect(err).ToNot(HaveOccurred())
			Expect(buf).To(Equal(want[2:5]))
		})

		It("is idempotent", func() {
			s := open(data)
			defer s.Close()

			Expect(s.Seek(11)).To(Succeed())
			Expect(s.Seek(11)).To(Succeed())
			Expect(s.Tell()).To(Equal(int64(11)))

			buf := make([]byte, 2)
			_, _, err := s.ReadInto(buf)
			Expect(err).ToNot(HaveOccurred())
			Expect(buf).To(Equal(want[11:13]))
		})

		It("matches the read path's physical position at record boundaries", func() {
			reader := open(data)
			defer reader.Close()
			seeker := open(data)
			defer seeker.Close()

			_, _, err := reader.ReadInto(make([]byte, 8))
			Expect(err).ToNot(HaveOccurred())
			Expect(seeker.Seek(8)).To(Succeed())

			rpt, err := reader.Ptell()
			Expect(err).ToNot(HaveOccurred())
			spt, err := seeker.Ptell()
			Expect(err).ToNot(HaveOccurred())
			Expect(spt).To(Equal(rpt))

			rbuf, sbuf := make([]byte, 1), make([]byte, 1)
			_, _, err = reader.ReadInto(rbuf)
			Expect(err).ToNot(HaveOccurred())
			_, _, err = seeker.ReadInto(sbuf)
			Expect(err).ToNot(HaveOccurred())
			Expect(sbuf).To(Equal(rbuf))

			rpt, err = reader.Ptell()
			Expect(err).ToNot(HaveOccurred())
			spt, err = seeker.Ptell()
			Expect(err).ToNot(HaveOccurred())
			Expect(spt).To(Equal(rpt))
		})

		It("uses the boundary rule on a warm index too", func() {
			s := open(data)
			defer s.Close()

			// Index the first three records, then jump back to the second
			// record's first byte.
			_, _, err := s.ReadInto(make([]byte, 20))
			Expect(err).ToNot(HaveOccurred())

			Expect(s.Seek(8)).To(Succeed())
			Expect(s.Tell()).To(Equal(int64(8)))
			Expect(s.Ptell()).To(Equal(int64(20)))

			buf := make([]byte, 3)
			_, _, err = s.ReadInto(buf)
			Expect(err).ToNot(HaveOccurred())
			Expect(buf).To(Equal(want[8:11]))
		})

		It("allows seeking past end-of-file", func() {
			s := open(data)
			defer s.Close()

			Expect(s.Seek(1000)).To(Succeed())

			n, st, err := s.ReadInto(make([]byte, 1))
			Expect(err).ToNot(HaveOccurred())
			Expect(n).To(Equal(int64(0)))
			Expect(st).To(Equal(stream.EOF))
			Expect(s.Eof()).To(BeTrue())
		})

		It("accepts a seek past the physical end of a stream with no trailing mark", func() {
			// A memory leaf cannot position exactly at end-of-buffer, so
			// this path needs a host file.
			trunc, _ := streamtest.TapeImageRecords(0, a, b)

			dir, err := os.MkdirTemp("", "wellstream_tapeimage_test")
			Expect(err).ToNot(HaveOccurred())
			defer os.RemoveAll(dir)

			path := filepath.Join(dir, "trunc.tif")
			Expect(os.WriteFile(path, trunc, 0644)).To(Succeed())

			f, err := os.Open(path)
			Expect(err).ToNot(HaveOccurred())

			s, err := New(source.NewFile(f))
			Expect(err).ToNot(HaveOccurred())
			defer s.Close()

			// Past the physical end; indexing stops there and the seek
			// still succeeds.
			Expect(s.Seek(100)).To(Succeed())

			n, st, err := s.ReadInto(make([]byte, 1))
			Expect(err).ToNot(HaveOccurred())
			Expect(n).To(Equal(int64(0)))
			Expect(st).To(Equal(stream.EOF))
		})
	})

	Context("recovery", func() {
		a, b, c := payload(0, 8), payload(8, 8), payload(16, 8)

		It("patches an unknown header type and reports TryRecovery", func() {
			data := streamtest.TapeImage(0, a, b, c)
			// Corrupt the second record header's type field.
			binary.LittleEndian.PutUint32(data[20:], 0xFFFFFFFF)

			s := open(data)
			defer s.Close()

			buf := make([]byte, 16)
			n, st, err := s.ReadInto(buf)

			Expect(err).ToNot(HaveOccurred())
			Expect(n).To(Equal(int64(16)))
			Expect(st).To(Equal(stream.TryRecovery))
			Expect(buf).To(Equal(append(append([]byte{}, a...), b...)))
		})

		It("stays in recovery for every subsequent read", func() {
			data := streamtest.TapeImage(0, a, b, c)
			binary.LittleEndian.PutUint32(data[20:], 0xFFFFFFFF)

			s := open(data)
			defer s.Close()

			_, _, err := s.ReadInto(make([]byte, 16))
			Expect(err).ToNot(HaveOccurred())

			n, st, err := s.ReadInto(make([]byte, 4))
			Expect(err).ToNot(HaveOccurred())
			Expect(n).To(Equal(int64(4)))
			Expect(st).To(Equal(stream.TryRecovery))
		})

		It("fails on a second anomaly", func() {
			data := streamtest.TapeImage(0, a, b, c)
			binary.LittleEndian.PutUint32(data[20:], 0xFFFFFFFF)
			// Corrupt the tape mark's type as well.
			binary.LittleEndian.PutUint32(data[60:], 0x77777777)

			s := open(data)
			defer s.Close()

			_, _, err := s.ReadInto(make([]byte, 16))
			Expect(err).ToNot(HaveOccurred())

			buf := make([]byte, 16)
			n, _, err := s.ReadInto(buf)
			Expect(stream.KindOf(err)).To(Equal(stream.KindProtocolFailedRecovery))
			Expect(n).To(Equal(int64(8)))
			Expect(buf[:8]).To(Equal(c))
			Expect(s.LastError()).To(ContainSubstring("corrupt"))
		})

		It("patches a broken back pointer in memory", func() {
			data := streamtest.TapeImage(0, a, b, c)
			// Corrupt the third record header's back pointer.
			binary.LittleEndian.PutUint32(data[44:], 13)

			s := open(data)
			defer s.Close()

			out := readAll(s)
			Expect(out).To(Equal(append(append(append([]byte{}, a...), b...), c...)))
		})

		It("requires the second header to point back at zero while recovering", func() {
			data := streamtest.TapeImage(0, a, b)
			// First header: bogus type starts recovery. Second header: back
			// pointer that does not name the first header.
			binary.LittleEndian.PutUint32(data[0:], 0xAAAAAAAA)
			binary.LittleEndian.PutUint32(data[24:], 5)

			s := open(data)
			defer s.Close()

			n, _, err := s.ReadInto(make([]byte, 16))
			Expect(stream.KindOf(err)).To(Equal(stream.KindProtocolFailedRecovery))
			Expect(n).To(Equal(int64(8)))
		})
	})

	Context("structurally broken files", func() {
		It("is fatal when next <= prev", func() {
			head := make([]byte, 12)
			binary.LittleEndian.PutUint32(head[0:], 0)
			binary.LittleEndian.PutUint32(head[4:], 5)
			binary.LittleEndian.PutUint32(head[8:], 3)

			s := open(head)
			defer s.Close()

			_, _, err := s.ReadInto(make([]byte, 1))
			Expect(stream.KindOf(err)).To(Equal(stream.KindProtocolFatal))
			Expect(err.Error()).To(ContainSubstring("4GB"))
		})

		It("suspects data loss when the type is broken too", func() {
			head := make([]byte, 12)
			binary.LittleEndian.PutUint32(head[0:], 7)
			binary.LittleEndian.PutUint32(head[4:], 5)
			binary.LittleEndian.PutUint32(head[8:], 3)

			s := open(head)
			defer s.Close()

			_, _, err := s.ReadInto(make([]byte, 1))
			Expect(stream.KindOf(err)).To(Equal(stream.KindProtocolFatal))
			Expect(err.Error()).To(ContainSubstring("type is not 0 or 1"))
		})

		It("reports a truncated header", func() {
			s := open(minimal[:6])
			defer s.Close()

			_, _, err := s.ReadInto(make([]byte, 1))
			Expect(stream.KindOf(err)).To(Equal(stream.KindUnexpectedEOF))
		})

		It("reports a truncated payload, delivering what it can", func() {
			s := open(minimal[:17]) // header plus five of eight payload bytes
			defer s.Close()

			buf := make([]byte, 8)
			n, _, err := s.ReadInto(buf)
			Expect(stream.KindOf(err)).To(Equal(stream.KindUnexpectedEOF))
			Expect(n).To(Equal(int64(5)))
			Expect(buf[:5]).To(Equal([]byte{1, 2, 3, 4, 5}))
		})
	})

	Context("with a blocked inner stream", func() {
		It("refuses to resume a clipped header read", func() {
			inner := &streamtest.Chunked{
				S:     source.NewMemoryWith(minimal),
				Chunk: 5,
			}

			s, err := New(inner)
			Expect(err).ToNot(HaveOccurred())
			defer s.Close()

			_, _, err = s.ReadInto(make([]byte, 1))
			Expect(stream.KindOf(err)).To(Equal(stream.KindProtocolFailedRecovery))
		})

		It("reports Incomplete with the bytes produced so far", func() {
			big := payload(0, 30)
			inner := &streamtest.Chunked{
				S:     source.NewMemoryWith(streamtest.TapeImage(0, big)),
				Chunk: 12,
			}

			s, err := New(inner)
			Expect(err).ToNot(HaveOccurred())
			defer s.Close()

			buf := make([]byte, 20)
			n, st, err := s.ReadInto(buf)

			Expect(err).ToNot(HaveOccurred())
			Expect(st).To(Equal(stream.Incomplete))
			Expect(n).To(Equal(int64(12)))
			Expect(buf[:12]).To(Equal(big[:12]))

			// The remainder is still there.
			n, st, err = s.ReadInto(buf[:8])
			Expect(err).ToNot(HaveOccurred())
			Expect(st).To(Equal(stream.Ok))
			Expect(n).To(Equal(int64(8)))
			Expect(buf[:8]).To(Equal(big[12:20]))
		})
	})

	Context("lifecycle", func() {
		var leaf *closeCounter

		BeforeEach(func() {
			leaf = &closeCounter{Memory: source.NewMemoryWith(minimal)}
		})

		It("closes the inner stream exactly once", func() {
			s, err := New(leaf)
			Expect(err).ToNot(HaveOccurred())

			Expect(s.Close()).To(Succeed())
			Expect(leaf.closes).To(Equal(1))

			Expect(s.Close()).To(Succeed())
			Expect(leaf.closes).To(Equal(1))
		})

		It("transfers ownership with Peel", func() {
			s, err := New(leaf)
			Expect(err).ToNot(HaveOccurred())

			inner, err := s.Peel()
			Expect(err).ToNot(HaveOccurred())
			Expect(inner).To(BeIdenticalTo(stream.Stream(leaf)))

			Expect(s.Close()).To(Succeed())
			Expect(leaf.closes).To(Equal(0))

			_, err = s.Peel()
			Expect(stream.KindOf(err)).To(Equal(stream.KindRuntimeError))
		})

		It("borrows the inner stream with Peek", func() {
			s, err := New(leaf)
			Expect(err).ToNot(HaveOccurred())

			inner, err := s.Peek()
			Expect(err).ToNot(HaveOccurred())
			Expect(inner).To(BeIdenticalTo(stream.Stream(leaf)))

			Expect(s.Close()).To(Succeed())
			Expect(leaf.closes).To(Equal(1))
		})
	})
})

func TestTapeImage(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Testing the tape image decoder")
}
