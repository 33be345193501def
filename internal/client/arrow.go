package client

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/23skdu/longbow-quill/internal/segment"
)

// TextColumn is the column holding tagged input lines.
const TextColumn = "text"

// TokenSchema is the layout of processed tokens: one row per token, with the
// sentence index and the token position inside that sentence.
var TokenSchema = arrow.NewSchema(
	[]arrow.Field{
		{Name: "sentence", Type: arrow.PrimitiveTypes.Int64},
		{Name: "position", Type: arrow.PrimitiveTypes.Int32},
		{Name: "word", Type: arrow.BinaryTypes.String},
		{Name: "tag", Type: arrow.BinaryTypes.String},
	},
	nil,
)

// RecordBatchBuilder creates Arrow RecordBatches from processed sentences.
type RecordBatchBuilder struct {
	mem memory.Allocator
}

// NewRecordBatchBuilder creates a new builder.
func NewRecordBatchBuilder(mem memory.Allocator) *RecordBatchBuilder {
	return &RecordBatchBuilder{mem: mem}
}

// BuildTokenBatch flattens sentences into a TokenSchema batch. Sentence
// numbers start at offset. It returns nil when there are no tokens.
func (b *RecordBatchBuilder) BuildTokenBatch(offset int64, sentences []segment.Sentence) (arrow.RecordBatch, error) {
	numRows := 0
	for _, s := range sentences {
		numRows += len(s)
	}
	if numRows == 0 {
		return nil, nil
	}

	sentenceBuilder := array.NewInt64Builder(b.mem)
	defer sentenceBuilder.Release()
	positionBuilder := array.NewInt32Builder(b.mem)
	defer positionBuilder.Release()
	wordBuilder := array.NewStringBuilder(b.mem)
	defer wordBuilder.Release()
	tagBuilder := array.NewStringBuilder(b.mem)
	defer tagBuilder.Release()

	sentenceBuilder.Reserve(numRows)
	positionBuilder.Reserve(numRows)
	wordBuilder.Reserve(numRows)
	tagBuilder.Reserve(numRows)

	for i, s := range sentences {
		for j, tok := range s {
			if tok == nil {
				return nil, fmt.Errorf("sentence %d: nil token at %d", offset+int64(i), j)
			}
			sentenceBuilder.Append(offset + int64(i))
			positionBuilder.Append(int32(j))
			wordBuilder.Append(tok.Word)
			tagBuilder.Append(tok.Tag)
		}
	}

	cols := []arrow.Array{
		sentenceBuilder.NewArray(),
		positionBuilder.NewArray(),
		wordBuilder.NewArray(),
		tagBuilder.NewArray(),
	}
	defer func() {
		for _, c := range cols {
			c.Release()
		}
	}()

	return array.NewRecordBatch(TokenSchema, cols, int64(numRows)), nil
}

// DecodeTokenBatch regroups a TokenSchema batch into sentences, in row order.
func DecodeTokenBatch(rec arrow.RecordBatch) ([]segment.Sentence, error) {
	if !rec.Schema().Equal(TokenSchema) {
		return nil, fmt.Errorf("unexpected schema: %s", rec.Schema())
	}
	sentenceCol := rec.Column(0).(*array.Int64)
	wordCol := rec.Column(2).(*array.String)
	tagCol := rec.Column(3).(*array.String)

	var (
		out  []segment.Sentence
		last int64
	)
	for i := 0; i < int(rec.NumRows()); i++ {
		id := sentenceCol.Value(i)
		if len(out) == 0 || id != last {
			out = append(out, segment.Sentence{})
			last = id
		}
		tok := &segment.Token{Word: wordCol.Value(i), Tag: tagCol.Value(i)}
		out[len(out)-1] = append(out[len(out)-1], tok)
	}
	return out, nil
}

// TextValues reads the tagged lines of a record: the "text" column when the
// schema names one, the first column otherwise. String and Binary columns are
// accepted.
func TextValues(rec arrow.RecordBatch) ([]string, error) {
	if rec.NumCols() == 0 {
		return nil, nil
	}
	col := rec.Column(0)
	if indices := rec.Schema().FieldIndices(TextColumn); len(indices) > 0 {
		col = rec.Column(indices[0])
	}

	switch arr := col.(type) {
	case *array.String:
		texts := make([]string, arr.Len())
		for i := range texts {
			texts[i] = arr.Value(i)
		}
		return texts, nil
	case *array.Binary:
		texts := make([]string, arr.Len())
		for i := range texts {
			texts[i] = string(arr.Value(i))
		}
		return texts, nil
	default:
		return nil, fmt.Errorf("text column has type %s, want utf8 or binary", col.DataType())
	}
}
