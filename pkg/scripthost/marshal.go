package scripthost

import (
	"github.com/dop251/goja"
	"github.com/helixml/corepipe/pkg/corepipeerr"
	"github.com/helixml/corepipe/pkg/streamtype"
)

// toJS converts a RuntimeData into a plain goja object a scripted node's
// process() function receives as one of its named inputs. Scalars cross
// via goja's native value conversion (rt.ToValue); byte payloads cross
// through marshalBytes.
func toJS(rt *goja.Runtime, rd *streamtype.RuntimeData) (goja.Value, error) {
	if rd == nil {
		return goja.Undefined(), nil
	}
	obj := rt.NewObject()
	obj.Set("type", string(rd.DataType()))

	switch rd.DataType() {
	case streamtype.TypeAudio:
		bytes, err := rd.AudioBytes()
		if err != nil {
			return nil, corepipeerr.Wrap(corepipeerr.KindInternal, err, "marshal audio to js")
		}
		sampleRate, channels, numSamples, format, err := rd.AudioMeta()
		if err != nil {
			return nil, corepipeerr.Wrap(corepipeerr.KindInternal, err, "marshal audio meta to js")
		}
		obj.Set("bytes", marshalBytes(rt, bytes))
		obj.Set("sampleRate", sampleRate)
		obj.Set("channels", channels)
		obj.Set("numSamples", numSamples)
		obj.Set("format", string(format))
	case streamtype.TypeVideo:
		bytes, err := rd.VideoBytes()
		if err != nil {
			return nil, corepipeerr.Wrap(corepipeerr.KindInternal, err, "marshal video to js")
		}
		width, height, format, frameNumber, timestampUs, err := rd.VideoMeta()
		if err != nil {
			return nil, corepipeerr.Wrap(corepipeerr.KindInternal, err, "marshal video meta to js")
		}
		obj.Set("bytes", marshalBytes(rt, bytes))
		obj.Set("width", width)
		obj.Set("height", height)
		obj.Set("format", string(format))
		obj.Set("frameNumber", frameNumber)
		obj.Set("timestampUs", timestampUs)
	case streamtype.TypeTensor:
		bytes, err := rd.TensorBytes()
		if err != nil {
			return nil, corepipeerr.Wrap(corepipeerr.KindInternal, err, "marshal tensor to js")
		}
		shape, dtype, layout, err := rd.TensorMeta()
		if err != nil {
			return nil, corepipeerr.Wrap(corepipeerr.KindInternal, err, "marshal tensor meta to js")
		}
		obj.Set("bytes", marshalBytes(rt, bytes))
		obj.Set("shape", shape)
		obj.Set("dtype", string(dtype))
		obj.Set("layout", layout)
	case streamtype.TypeJSON:
		value, err := rd.JSONValue()
		if err != nil {
			return nil, corepipeerr.Wrap(corepipeerr.KindInternal, err, "marshal json to js")
		}
		obj.Set("value", rt.ToValue(value))
	case streamtype.TypeText:
		bytes, err := rd.TextBytes()
		if err != nil {
			return nil, corepipeerr.Wrap(corepipeerr.KindInternal, err, "marshal text to js")
		}
		obj.Set("text", string(bytes))
	case streamtype.TypeBinary:
		bytes, err := rd.BinaryBytes()
		if err != nil {
			return nil, corepipeerr.Wrap(corepipeerr.KindInternal, err, "marshal binary to js")
		}
		obj.Set("bytes", marshalBytes(rt, bytes))
	default:
		return nil, corepipeerr.New(corepipeerr.KindInternal, "unhandled data type in toJS")
	}
	return obj, nil
}

// fromJS converts a scripted node's returned plain object back into
// RuntimeData, re-validating every payload invariant through the same
// streamtype constructors the native path uses.
func fromJS(rt *goja.Runtime, v goja.Value) (*streamtype.RuntimeData, error) {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil, corepipeerr.New(corepipeerr.KindValidation, "scripted node returned no data")
	}
	obj := v.ToObject(rt)
	kind := streamtype.DataTypeHint(obj.Get("type").String())

	switch kind {
	case streamtype.TypeAudio:
		bytes, err := unmarshalBytes(obj.Get("bytes"))
		if err != nil {
			return nil, err
		}
		sampleRate := int(obj.Get("sampleRate").ToInteger())
		channels := int(obj.Get("channels").ToInteger())
		format := streamtype.SampleFormat(obj.Get("format").String())
		return streamtype.NewAudio(bytes, sampleRate, channels, format, nil)
	case streamtype.TypeVideo:
		bytes, err := unmarshalBytes(obj.Get("bytes"))
		if err != nil {
			return nil, err
		}
		width := int(obj.Get("width").ToInteger())
		height := int(obj.Get("height").ToInteger())
		format := streamtype.PixelFormat(obj.Get("format").String())
		frameNumber := uint64(obj.Get("frameNumber").ToInteger())
		timestampUs := obj.Get("timestampUs").ToInteger()
		return streamtype.NewVideo(bytes, width, height, format, frameNumber, timestampUs, nil)
	case streamtype.TypeTensor:
		bytes, err := unmarshalBytes(obj.Get("bytes"))
		if err != nil {
			return nil, err
		}
		rawShape := obj.Get("shape").Export()
		shape, err := toIntSlice(rawShape)
		if err != nil {
			return nil, err
		}
		dtype := streamtype.TensorDType(obj.Get("dtype").String())
		layout := obj.Get("layout").String()
		return streamtype.NewTensor(bytes, shape, dtype, layout, nil)
	case streamtype.TypeJSON:
		value := obj.Get("value").Export()
		return streamtype.NewJSONValue(value, "", nil), nil
	case streamtype.TypeText:
		text := obj.Get("text").String()
		return streamtype.NewText([]byte(text), "utf-8", "", nil)
	case streamtype.TypeBinary:
		bytes, err := unmarshalBytes(obj.Get("bytes"))
		if err != nil {
			return nil, err
		}
		return streamtype.NewBinary(bytes, "", nil), nil
	default:
		return nil, corepipeerr.New(corepipeerr.KindValidation, "scripted node returned an unrecognized data type")
	}
}

func toIntSlice(raw any) ([]int, error) {
	items, ok := raw.([]any)
	if !ok {
		return nil, corepipeerr.New(corepipeerr.KindTypeValidation, "expected a numeric array for tensor shape")
	}
	out := make([]int, len(items))
	for i, it := range items {
		switch n := it.(type) {
		case int64:
			out[i] = int(n)
		case float64:
			out[i] = int(n)
		default:
			return nil, corepipeerr.New(corepipeerr.KindTypeValidation, "tensor shape element is not numeric")
		}
	}
	return out, nil
}
