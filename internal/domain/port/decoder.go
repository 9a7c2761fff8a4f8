package port

import "github.com/EbrithilNogare/frameconv/internal/domain/entity"

type FrameDecoder interface {
	DecodeFile(path string) (*entity.Frame, error)
}

type FrameEnumerator interface {
	Enumerate(dir string) (*entity.FrameSequence, error)
}
