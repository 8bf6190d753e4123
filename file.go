// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package nmo

import (
	"os"

	mmap "github.com/edsrzf/mmap-go"
	"github.com/saferwall/nmo/log"
)

// A File represents an open composition file: the fixed header, the decoded
// Header1 tables and the (lazily decompressed) data section.
type File struct {
	Header        FileHeader         `json:"header"`
	Descriptors   []ObjectDescriptor `json:"descriptors,omitempty"`
	PluginDeps    []PluginDep        `json:"plugin_deps,omitempty"`
	IncludedFiles []string           `json:"included_files,omitempty"`

	data   mmap.MMap
	size   uint32
	f      *os.File
	opts   *Options
	logger *log.Helper

	dataSection []uint32
}

// New instantiates a file instance with options given a file name. The
// input is memory mapped instead of read into the heap.
func New(name string, opts *Options) (*File, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, wrapKind(KindIoError, err, "open %s", name)
	}

	data, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, wrapKind(KindIoError, err, "map %s", name)
	}

	file := File{}
	if opts != nil {
		file.opts = opts
	} else {
		file.opts = &Options{}
	}
	file.initLogger()
	file.data = data
	file.size = uint32(len(file.data))
	file.f = f
	return &file, nil
}

// NewBytes instantiates a file instance with options given a memory buffer.
func NewBytes(data []byte, opts *Options) (*File, error) {
	file := File{}
	if opts != nil {
		file.opts = opts
	} else {
		file.opts = &Options{}
	}
	file.initLogger()
	file.data = data
	file.size = uint32(len(file.data))
	return &file, nil
}

func (f *File) initLogger() {
	if f.opts.Logger == nil {
		f.logger = log.NewHelper(log.NewFilter(log.NewStdLogger(os.Stdout),
			log.FilterLevel(log.LevelError)))
	} else {
		f.logger = log.NewHelper(f.opts.Logger)
	}
}

// Close closes the File.
func (f *File) Close() error {
	if f.f != nil {
		_ = f.data.Unmap()
		return f.f.Close()
	}
	return nil
}

// Parse decodes the fixed header and the Header1 region: signature and
// version validation, decompression per the declared sizes, CRC check and
// table parsing. The data section stays untouched until DataSection.
func (f *File) Parse() error {
	return f.parse(nil)
}

func (f *File) parse(a *Arena) error {
	hdr, err := ParseFileHeader(f.data)
	if err != nil {
		return err
	}
	f.Header = hdr

	start := uint32(FileHeaderSize)
	if start+hdr.Hdr1PackedSize > f.size {
		return errKind(KindInvalidFormat, "Header1 region of %d bytes overruns the file",
			hdr.Hdr1PackedSize)
	}
	region := f.data[start : start+hdr.Hdr1PackedSize]

	raw := []byte(region)
	if hdr.Compressed() && hdr.Hdr1PackedSize != hdr.Hdr1UnpackedSize {
		if raw, err = inflate(region, int(hdr.Hdr1UnpackedSize)); err != nil {
			return err
		}
	}
	if len(raw) != int(hdr.Hdr1UnpackedSize) {
		return errKind(KindInvalidFormat, "Header1 decodes to %d bytes, header declares %d",
			len(raw), hdr.Hdr1UnpackedSize)
	}
	if len(raw) > 0 {
		if crc := adlerUpdate(1, raw); crc != hdr.Hdr1CRC {
			return ErrHeaderCRC
		}
		h1, err := decodeHeader1(bytesToDwords(raw), a)
		if err != nil {
			return err
		}
		f.Descriptors = h1.Descriptors
		f.PluginDeps = h1.PluginDeps
		f.IncludedFiles = h1.IncludedFiles
	}

	if int(f.Header.ObjectCount) < len(f.Descriptors) {
		return errKind(KindInvalidFormat, "header declares %d objects, Header1 carries %d",
			f.Header.ObjectCount, len(f.Descriptors))
	}
	return nil
}

// DataSection decompresses (once) and returns the data section as DWORDs.
func (f *File) DataSection() ([]uint32, error) {
	if f.dataSection != nil {
		return f.dataSection, nil
	}
	start := uint32(FileHeaderSize) + f.Header.Hdr1PackedSize
	if start+f.Header.DataPackedSize > f.size {
		return nil, errKind(KindInvalidFormat, "data section of %d bytes overruns the file",
			f.Header.DataPackedSize)
	}
	region := f.data[start : start+f.Header.DataPackedSize]
	raw := []byte(region)
	if f.Header.Compressed() && f.Header.DataPackedSize != f.Header.DataUnpackedSize {
		var err error
		if raw, err = inflate(region, int(f.Header.DataUnpackedSize)); err != nil {
			return nil, err
		}
	}
	if len(raw) != int(f.Header.DataUnpackedSize) {
		return nil, errKind(KindInvalidFormat, "data section decodes to %d bytes, header declares %d",
			len(raw), f.Header.DataUnpackedSize)
	}
	f.dataSection = bytesToDwords(raw)
	return f.dataSection, nil
}
