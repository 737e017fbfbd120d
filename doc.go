// Package jsonfig declares JSON mappings for domain types through a fluent
// builder API and translates the frozen configuration into the native settings
// object of one of two JSON engines:
//
//   - engine/jsonv2: json.Options for github.com/go-json-experiment/json
//   - engine/jsoniter: a frozen jsoniter.API for github.com/json-iterator/go
//
// Design policy:
//   - Keep the engine-agnostic definition model and the validator in the root
//     package; put builders under dsl/ and engine translation under engine/.
//   - Definitions are mutable only during configuration and are frozen exactly
//     once before being handed to an adapter; frozen definitions are shared
//     across goroutines without locks.
//   - Prefer black-box testing against public APIs.
//
// Typical usage:
//
//	b := jsonv2.NewBuilder().
//		Apply(UserConfig{}).
//		Naming(jsonfig.NamingSnakeCase)
//	opts, err := b.Build(nil)
//	data, err := json.Marshal(user, opts)
//
// Configuration errors and validation issues surface from Build, never from
// the first serialization call. Errors raised by installed hooks during
// serialize/deserialize are reported as *CodecError with the cause preserved.
package jsonfig
