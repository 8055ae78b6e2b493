// Copyright 2018 Dan Jacques. All rights reserved.
// Use of this source code is governed under the MIT License
// that can be found in the LICENSE file.

package source

import (
	"bytes"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/danjacques/wellstream/stream"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

// fakeHandle is an OSFile with scriptable seek and close behaviour, standing
// in for handles such as pipes that Go will happily hand us but that cannot
// seek.
type fakeHandle struct {
	io.Reader

	seekErr  error
	closeErr error
}

func (f *fakeHandle) Seek(offset int64, whence int) (int64, error) {
	if f.seekErr != nil {
		return 0, f.seekErr
	}
	return 0, nil
}

func (f *fakeHandle) Close() error { return f.closeErr }

var _ = Describe("File", func() {
	data := []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}

	var dir, path string

	BeforeEach(func() {
		var err error
		dir, err = os.MkdirTemp("", "wellstream_file_test")
		Expect(err).ToNot(HaveOccurred())

		path = filepath.Join(dir, "data.bin")
		Expect(os.WriteFile(path, data, 0644)).To(Succeed())
	})

	AfterEach(func() {
		Expect(os.RemoveAll(dir)).To(Succeed())
	})

	open := func() *os.File {
		f, err := os.Open(path)
		Expect(err).ToNot(HaveOccurred())
		return f
	}

	It("reads the whole file", func() {
		s := NewFile(open())
		defer s.Close()

		buf := make([]byte, len(data))
		n, st, err := s.ReadInto(buf)

		Expect(err).ToNot(HaveOccurred())
		Expect(n).To(Equal(int64(len(data))))
		Expect(st).To(Equal(stream.Ok))
		Expect(buf).To(Equal(data))
	})

	It("reports EOF on a short read", func() {
		s := NewFile(open())
		defer s.Close()

		buf := make([]byte, len(data)+5)
		n, st, err := s.ReadInto(buf)

		Expect(err).ToNot(HaveOccurred())
		Expect(n).To(Equal(int64(len(data))))
		Expect(st).To(Equal(stream.EOF))
		Expect(s.Eof()).To(BeTrue())
	})

	It("clears the eof indicator on seek", func() {
		s := NewFile(open())
		defer s.Close()

		_, _, err := s.ReadInto(make([]byte, len(data)+1))
		Expect(err).ToNot(HaveOccurred())
		Expect(s.Eof()).To(BeTrue())

		Expect(s.Seek(0)).To(Succeed())
		Expect(s.Eof()).To(BeFalse())
	})

	It("takes the handle's current offset as zero", func() {
		f := open()
		_, err := f.Seek(3, io.SeekStart)
		Expect(err).ToNot(HaveOccurred())

		s := NewFile(f)
		defer s.Close()

		Expect(s.Tell()).To(Equal(int64(0)))
		Expect(s.Ptell()).To(Equal(int64(3)))

		buf := make([]byte, 2)
		_, _, err = s.ReadInto(buf)
		Expect(err).ToNot(HaveOccurred())
		Expect(buf).To(Equal([]byte{3, 4}))
	})

	It("seeks relative to an explicit zero", func() {
		s, err := NewFileAt(open(), 4)
		Expect(err).ToNot(HaveOccurred())
		defer s.Close()

		Expect(s.Seek(2)).To(Succeed())
		Expect(s.Tell()).To(Equal(int64(2)))
		Expect(s.Ptell()).To(Equal(int64(6)))

		buf := make([]byte, 1)
		_, _, err = s.ReadInto(buf)
		Expect(err).ToNot(HaveOccurred())
		Expect(buf[0]).To(Equal(byte(6)))
	})

	It("rejects a negative zero offset", func() {
		f := open()
		defer f.Close()

		_, err := NewFileAt(f, -1)
		Expect(stream.KindOf(err)).To(Equal(stream.KindInvalidArgs))
	})

	It("rejects a negative seek offset", func() {
		s := NewFile(open())
		defer s.Close()

		Expect(stream.KindOf(s.Seek(-1))).To(Equal(stream.KindInvalidArgs))
	})

	It("tolerates seeking past the end of the file", func() {
		s := NewFile(open())
		defer s.Close()

		Expect(s.Seek(100)).To(Succeed())

		n, st, err := s.ReadInto(make([]byte, 1))
		Expect(err).ToNot(HaveOccurred())
		Expect(n).To(Equal(int64(0)))
		Expect(st).To(Equal(stream.EOF))
	})

	Context("with a handle that cannot seek", func() {
		var s *File

		BeforeEach(func() {
			s = NewFile(&fakeHandle{
				Reader:  bytes.NewReader(data),
				seekErr: errors.New("illegal seek"),
			})
		})

		It("still reads", func() {
			buf := make([]byte, 4)
			n, st, err := s.ReadInto(buf)

			Expect(err).ToNot(HaveOccurred())
			Expect(n).To(Equal(int64(4)))
			Expect(st).To(Equal(stream.Ok))
		})

		It("fails every seek and tell with the captured message", func() {
			err := s.Seek(0)
			Expect(stream.KindOf(err)).To(Equal(stream.KindNotSupported))
			Expect(err.Error()).To(ContainSubstring("illegal seek"))

			_, err = s.Tell()
			Expect(stream.KindOf(err)).To(Equal(stream.KindNotSupported))

			_, err = s.Ptell()
			Expect(stream.KindOf(err)).To(Equal(stream.KindNotSupported))

			Expect(s.LastError()).To(ContainSubstring("illegal seek"))
		})
	})

	It("propagates close failures as runtime errors", func() {
		s := NewFile(&fakeHandle{
			Reader:   bytes.NewReader(data),
			closeErr: errors.New("device gone"),
		})

		err := s.Close()
		Expect(stream.KindOf(err)).To(Equal(stream.KindRuntimeError))
		Expect(err.Error()).To(ContainSubstring("device gone"))
	})

	It("is a no-op to close twice", func() {
		s := NewFile(open())
		Expect(s.Close()).To(Succeed())
		Expect(s.Close()).To(Succeed())
	})

	It("has no inner stream to peel or peek", func() {
		s := NewFile(open())
		defer s.Close()

		_, err := s.Peel()
		Expect(stream.KindOf(err)).To(Equal(stream.KindLeafProtocol))

		_, err = s.Peek()
		Expect(stream.KindOf(err)).To(Equal(stream.KindLeafProtocol))
	})
})
