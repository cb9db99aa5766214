package ffi

import (
	"github.com/dop251/goja"
	"github.com/helixml/corepipe/pkg/scripthost"
	"github.com/helixml/corepipe/pkg/streamtype"
)

// installConstructors registers the typed-handle factory constructors:
// host-provided byte buffers plus shape/rate metadata, rejecting invalid
// shapes (e.g. a non-multiple-of-sample-size audio byte length) at
// construction rather than deferring to first use.
func installConstructors(rt *goja.Runtime) error {
	constructors := map[string]func(goja.FunctionCall) goja.Value{
		"new_audio_buffer":  newAudioBuffer(rt),
		"new_video_buffer":  newVideoBuffer(rt),
		"new_tensor_buffer": newTensorBuffer(rt),
		"new_text_buffer":   newTextBuffer(rt),
		"new_binary_buffer": newBinaryBuffer(rt),
	}
	for name, fn := range constructors {
		if err := rt.Set(name, fn); err != nil {
			return err
		}
	}
	return nil
}

func mustBytes(rt *goja.Runtime, v goja.Value) []byte {
	b, err := scripthost.UnmarshalBytes(v)
	if err != nil {
		panic(rt.ToValue(err.Error()))
	}
	return b
}

func newAudioBuffer(rt *goja.Runtime) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		bytes := mustBytes(rt, call.Argument(0))
		sampleRate := int(call.Argument(1).ToInteger())
		channels := int(call.Argument(2).ToInteger())
		format := streamtype.SampleFormat(call.Argument(3).String())
		rd, err := streamtype.NewAudio(bytes, sampleRate, channels, format, nil)
		if err != nil {
			panic(rt.ToValue(err.Error()))
		}
		v, err := scripthost.ToJS(rt, rd)
		if err != nil {
			panic(rt.ToValue(err.Error()))
		}
		return v
	}
}

func newVideoBuffer(rt *goja.Runtime) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		bytes := mustBytes(rt, call.Argument(0))
		width := int(call.Argument(1).ToInteger())
		height := int(call.Argument(2).ToInteger())
		format := streamtype.PixelFormat(call.Argument(3).String())
		frameNumber := uint64(call.Argument(4).ToInteger())
		timestampUs := call.Argument(5).ToInteger()
		rd, err := streamtype.NewVideo(bytes, width, height, format, frameNumber, timestampUs, nil)
		if err != nil {
			panic(rt.ToValue(err.Error()))
		}
		v, err := scripthost.ToJS(rt, rd)
		if err != nil {
			panic(rt.ToValue(err.Error()))
		}
		return v
	}
}

func newTensorBuffer(rt *goja.Runtime) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		bytes := mustBytes(rt, call.Argument(0))
		rawShape := call.Argument(1).Export()
		shape, err := scripthost.ToIntSlice(rawShape)
		if err != nil {
			panic(rt.ToValue(err.Error()))
		}
		dtype := streamtype.TensorDType(call.Argument(2).String())
		layout := call.Argument(3).String()
		rd, err := streamtype.NewTensor(bytes, shape, dtype, layout, nil)
		if err != nil {
			panic(rt.ToValue(err.Error()))
		}
		v, err := scripthost.ToJS(rt, rd)
		if err != nil {
			panic(rt.ToValue(err.Error()))
		}
		return v
	}
}

func newTextBuffer(rt *goja.Runtime) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		text := call.Argument(0).String()
		encoding := "utf-8"
		if len(call.Arguments) > 1 {
			encoding = call.Argument(1).String()
		}
		rd, err := streamtype.NewText([]byte(text), encoding, "", nil)
		if err != nil {
			panic(rt.ToValue(err.Error()))
		}
		v, err := scripthost.ToJS(rt, rd)
		if err != nil {
			panic(rt.ToValue(err.Error()))
		}
		return v
	}
}

func newBinaryBuffer(rt *goja.Runtime) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		bytes := mustBytes(rt, call.Argument(0))
		mimeHint := ""
		if len(call.Arguments) > 1 {
			mimeHint = call.Argument(1).String()
		}
		rd := streamtype.NewBinary(bytes, mimeHint, nil)
		v, err := scripthost.ToJS(rt, rd)
		if err != nil {
			panic(rt.ToValue(err.Error()))
		}
		return v
	}
}
