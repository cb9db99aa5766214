package scripthost

import (
	"github.com/dop251/goja"
	"github.com/helixml/corepipe/pkg/corepipeerr"
	"github.com/helixml/corepipe/pkg/modelregistry"
)

// installGetOrLoad binds the scripted node's get_or_load(key, loader)
// global, which reaches across the FFI boundary into the model registry,
// to reg. loader is a JS function called at most once per
// absent->resident transition; its return value is cached verbatim as
// the handle's value.
func installGetOrLoad(rt *goja.Runtime, reg *modelregistry.Registry) {
	rt.Set("get_or_load", func(call goja.FunctionCall) goja.Value {
		if reg == nil {
			panic(rt.ToValue(corepipeerr.New(corepipeerr.KindInternal, "get_or_load called with no model registry bound").Error()))
		}
		key := call.Argument(0).String()
		loaderFn, ok := goja.AssertFunction(call.Argument(1))
		if !ok {
			panic(rt.ToValue(corepipeerr.New(corepipeerr.KindValidation, "get_or_load's second argument must be a function").Error()))
		}

		handle, err := reg.GetOrLoad(key, func() (any, int64, error) {
			result, callErr := loaderFn(goja.Undefined())
			if callErr != nil {
				return nil, 0, callErr
			}
			return result.Export(), 0, nil
		})
		if err != nil {
			panic(rt.ToValue(err.Error()))
		}

		obj := rt.NewObject()
		obj.Set("value", rt.ToValue(handle.Value()))
		obj.Set("release", func(goja.FunctionCall) goja.Value {
			handle.Release()
			return goja.Undefined()
		})
		return obj
	})
}
