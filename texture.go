// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package nmo

// CKTexture chunk identifiers.
const (
	textureSaveFormat = 0x00000090
	textureSavePixels = 0x00000091
)

// TextureState is the decoded CKTexture payload. Pixel bytes are preserved
// verbatim; no pixel format conversion or GPU resource is ever produced.
type TextureState struct {
	BeObjectState

	Width        uint32
	Height       uint32
	BitsPerPixel uint32
	MipmapCount  uint32
	SlotCount    uint32

	Pixels []byte
}

// StateClassID reports the class the state was decoded for.
func (s *TextureState) StateClassID() ClassID {
	return ClassTexture
}

func readTextureState(c *Chunk, a *Arena, st State) error {
	if err := readParent(Classes, ClassTexture, c, a, st); err != nil {
		return err
	}
	s, ok := st.(*TextureState)
	if !ok {
		return errKind(KindInvalidArgument, "state is not a texture state")
	}
	if err := c.SeekIdentifier(textureSaveFormat); err == nil {
		var err error
		if s.Width, err = c.ReadDword(); err != nil {
			return err
		}
		if s.Height, err = c.ReadDword(); err != nil {
			return err
		}
		if s.BitsPerPixel, err = c.ReadDword(); err != nil {
			return err
		}
		if s.MipmapCount, err = c.ReadDword(); err != nil {
			return err
		}
		if s.SlotCount, err = c.ReadDword(); err != nil {
			return err
		}
	}
	if err := c.SeekIdentifier(textureSavePixels); err == nil {
		pixels, err := c.ReadBuffer(a)
		if err != nil {
			return err
		}
		s.Pixels = pixels
	}
	return nil
}

func writeTextureState(st State, c *Chunk, a *Arena) error {
	if err := writeParent(Classes, ClassTexture, st, c, a); err != nil {
		return err
	}
	s, ok := st.(*TextureState)
	if !ok {
		return errKind(KindInvalidArgument, "state is not a texture state")
	}
	if err := c.WriteIdentifier(textureSaveFormat); err != nil {
		return err
	}
	for _, v := range []uint32{s.Width, s.Height, s.BitsPerPixel, s.MipmapCount, s.SlotCount} {
		if err := c.WriteDword(v); err != nil {
			return err
		}
	}
	if len(s.Pixels) > 0 {
		if err := c.WriteIdentifier(textureSavePixels); err != nil {
			return err
		}
		if err := c.WriteBuffer(s.Pixels); err != nil {
			return err
		}
	}
	return nil
}

// maxMipmaps returns the deepest mip chain the dimensions allow.
func maxMipmaps(w, h uint32) uint32 {
	size := Max(w, h)
	count := uint32(1)
	for size > 1 {
		size >>= 1
		count++
	}
	return count
}

// finishTextureState validates that the mipmap count is consistent with the
// texture dimensions.
func finishTextureState(st State, a *Arena, repo *Repository) error {
	if err := finishParent(Classes, ClassTexture, st, a, repo); err != nil {
		return err
	}
	s, ok := st.(*TextureState)
	if !ok {
		return nil
	}
	if s.Width == 0 && s.Height == 0 {
		return nil
	}
	if s.MipmapCount > maxMipmaps(s.Width, s.Height) {
		return errKind(KindValidationFailed,
			"texture %d declares %d mipmaps for %dx%d", s.OwnerID, s.MipmapCount, s.Width, s.Height)
	}
	return nil
}

func init() {
	Classes.mustRegister(&ClassDescriptor{
		Name:          "CKTexture",
		GUID:          NewGUID(0x705a43e2, 0x17f08bb9),
		ClassID:       ClassTexture,
		ParentID:      ClassBeObject,
		NewState:      func() State { return &TextureState{} },
		Read:          readTextureState,
		Write:         writeTextureState,
		FinishLoading: finishTextureState,
	})
}
