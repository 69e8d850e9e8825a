// Copyright 2025 The wiki-rag authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package badger

import (
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
)

// MUS serializers for the stored record types. Timestamps are Unix micro.

var vectorMUS = vectorSer{}

// vectorSer serializes an optional embedding vector. A leading presence
// flag keeps nil (never embedded) distinct from an empty vector.
type vectorSer struct{}

var float32SliceMUS = ord.NewSliceSer[float32](raw.Float32)

func (vectorSer) Marshal(v []float32, bs []byte) (n int) {
	n = ord.Bool.Marshal(v != nil, bs)
	if v != nil {
		n += float32SliceMUS.Marshal(v, bs[n:])
	}
	return
}

func (vectorSer) Unmarshal(bs []byte) (v []float32, n int, err error) {
	present, n, err := ord.Bool.Unmarshal(bs)
	if err != nil || !present {
		return
	}
	var n1 int
	v, n1, err = float32SliceMUS.Unmarshal(bs[n:])
	n += n1
	return
}

func (vectorSer) Size(v []float32) (size int) {
	size = ord.Bool.Size(v != nil)
	if v != nil {
		size += float32SliceMUS.Size(v)
	}
	return
}

func (vectorSer) Skip(bs []byte) (n int, err error) {
	present, n, err := ord.Bool.Unmarshal(bs)
	if err != nil || !present {
		return
	}
	var n1 int
	n1, err = float32SliceMUS.Skip(bs[n:])
	n += n1
	return
}

var fragmentRecordMUS = fragmentRecordSer{}

type fragmentRecordSer struct{}

func (fragmentRecordSer) Marshal(r fragmentRecord, bs []byte) (n int) {
	n = ord.String.Marshal(r.ID, bs)
	n += ord.String.Marshal(r.DocumentID, bs[n:])
	n += ord.String.Marshal(r.DisplayText, bs[n:])
	n += ord.String.Marshal(r.IndexText, bs[n:])
	n += vectorMUS.Marshal(r.Embedding, bs[n:])
	n += raw.Int64.Marshal(r.CreatedAt.UnixMicro(), bs[n:])
	return
}

func (fragmentRecordSer) Unmarshal(bs []byte) (r fragmentRecord, n int, err error) {
	var n1 int
	r.ID, n, err = ord.String.Unmarshal(bs)
	if err != nil {
		return
	}
	r.DocumentID, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	r.DisplayText, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	r.IndexText, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	r.Embedding, n1, err = vectorMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	var usec int64
	usec, n1, err = raw.Int64.Unmarshal(bs[n:])
	n += n1
	r.CreatedAt = time.UnixMicro(usec).UTC()
	return
}

func (fragmentRecordSer) Size(r fragmentRecord) (size int) {
	size = ord.String.Size(r.ID)
	size += ord.String.Size(r.DocumentID)
	size += ord.String.Size(r.DisplayText)
	size += ord.String.Size(r.IndexText)
	size += vectorMUS.Size(r.Embedding)
	size += raw.Int64.Size(r.CreatedAt.UnixMicro())
	return
}

var questionRecordMUS = questionRecordSer{}

type questionRecordSer struct{}

func (questionRecordSer) Marshal(r questionRecord, bs []byte) (n int) {
	n = ord.String.Marshal(r.ID, bs)
	n += ord.String.Marshal(r.FragmentID, bs[n:])
	n += ord.String.Marshal(r.DocumentID, bs[n:])
	n += ord.String.Marshal(r.Text, bs[n:])
	n += vectorMUS.Marshal(r.Embedding, bs[n:])
	n += raw.Int64.Marshal(r.CreatedAt.UnixMicro(), bs[n:])
	return
}

func (questionRecordSer) Unmarshal(bs []byte) (r questionRecord, n int, err error) {
	var n1 int
	r.ID, n, err = ord.String.Unmarshal(bs)
	if err != nil {
		return
	}
	r.FragmentID, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	r.DocumentID, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	r.Text, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	r.Embedding, n1, err = vectorMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	var usec int64
	usec, n1, err = raw.Int64.Unmarshal(bs[n:])
	n += n1
	r.CreatedAt = time.UnixMicro(usec).UTC()
	return
}

func (questionRecordSer) Size(r questionRecord) (size int) {
	size = ord.String.Size(r.ID)
	size += ord.String.Size(r.FragmentID)
	size += ord.String.Size(r.DocumentID)
	size += ord.String.Size(r.Text)
	size += vectorMUS.Size(r.Embedding)
	size += raw.Int64.Size(r.CreatedAt.UnixMicro())
	return
}

// marshalFragmentRecord serializes a fragmentRecord to bytes.
func marshalFragmentRecord(record fragmentRecord) []byte {
	buf := make([]byte, fragmentRecordMUS.Size(record))
	fragmentRecordMUS.Marshal(record, buf)
	return buf
}

// unmarshalFragmentRecord deserializes a fragmentRecord from bytes.
func unmarshalFragmentRecord(data []byte) (fragmentRecord, error) {
	record, _, err := fragmentRecordMUS.Unmarshal(data)
	return record, err
}

// marshalQuestionRecord serializes a questionRecord to bytes.
func marshalQuestionRecord(record questionRecord) []byte {
	buf := make([]byte, questionRecordMUS.Size(record))
	questionRecordMUS.Marshal(record, buf)
	return buf
}

// unmarshalQuestionRecord deserializes a questionRecord from bytes.
func unmarshalQuestionRecord(data []byte) (questionRecord, error) {
	record, _, err := questionRecordMUS.Unmarshal(data)
	return record, err
}
