package inference

import (
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"
)

// dynamicMessage lazily allocates its dynamic message so that zero values
// (new(T), &T{}) are ready to use as decode targets.
type dynamicMessage struct {
	msg *dynamicpb.Message
}

func (d *dynamicMessage) reflect(desc protoreflect.MessageDescriptor) protoreflect.Message {
	if d.msg == nil {
		d.msg = dynamicpb.NewMessage(desc)
	}
	return d.msg
}

func getString(m protoreflect.Message, name protoreflect.Name) string {
	return m.Get(m.Descriptor().Fields().ByName(name)).String()
}

func setString(m protoreflect.Message, name protoreflect.Name, value string) {
	m.Set(m.Descriptor().Fields().ByName(name), protoreflect.ValueOfString(value))
}

func getBool(m protoreflect.Message, name protoreflect.Name) bool {
	return m.Get(m.Descriptor().Fields().ByName(name)).Bool()
}

func setBool(m protoreflect.Message, name protoreflect.Name, value bool) {
	m.Set(m.Descriptor().Fields().ByName(name), protoreflect.ValueOfBool(value))
}

// ServerLiveRequest asks whether the server is live.
type ServerLiveRequest struct{ dynamicMessage }

func (m *ServerLiveRequest) ProtoReflect() protoreflect.Message {
	return m.reflect(serverLiveRequestDesc)
}

// ServerLiveResponse reports server liveness.
type ServerLiveResponse struct{ dynamicMessage }

func (m *ServerLiveResponse) ProtoReflect() protoreflect.Message {
	return m.reflect(serverLiveResponseDesc)
}

func (m *ServerLiveResponse) GetLive() bool {
	if m == nil {
		return false
	}
	return getBool(m.ProtoReflect(), "live")
}

func (m *ServerLiveResponse) SetLive(live bool) { setBool(m.ProtoReflect(), "live", live) }

// ServerReadyRequest asks whether the server is ready for inferencing.
type ServerReadyRequest struct{ dynamicMessage }

func (m *ServerReadyRequest) ProtoReflect() protoreflect.Message {
	return m.reflect(serverReadyRequestDesc)
}

// ServerReadyResponse reports server readiness.
type ServerReadyResponse struct{ dynamicMessage }

func (m *ServerReadyResponse) ProtoReflect() protoreflect.Message {
	return m.reflect(serverReadyResponseDesc)
}

func (m *ServerReadyResponse) GetReady() bool {
	if m == nil {
		return false
	}
	return getBool(m.ProtoReflect(), "ready")
}

func (m *ServerReadyResponse) SetReady(ready bool) { setBool(m.ProtoReflect(), "ready", ready) }

// ModelReadyRequest asks whether a model is ready for inferencing.
type ModelReadyRequest struct{ dynamicMessage }

func (m *ModelReadyRequest) ProtoReflect() protoreflect.Message {
	return m.reflect(modelReadyRequestDesc)
}

func (m *ModelReadyRequest) GetName() string {
	if m == nil {
		return ""
	}
	return getString(m.ProtoReflect(), "name")
}

func (m *ModelReadyRequest) SetName(name string) { setString(m.ProtoReflect(), "name", name) }

func (m *ModelReadyRequest) GetVersion() string {
	if m == nil {
		return ""
	}
	return getString(m.ProtoReflect(), "version")
}

// ModelReadyResponse reports model readiness.
type ModelReadyResponse struct{ dynamicMessage }

func (m *ModelReadyResponse) ProtoReflect() protoreflect.Message {
	return m.reflect(modelReadyResponseDesc)
}

func (m *ModelReadyResponse) GetReady() bool {
	if m == nil {
		return false
	}
	return getBool(m.ProtoReflect(), "ready")
}

func (m *ModelReadyResponse) SetReady(ready bool) { setBool(m.ProtoReflect(), "ready", ready) }

// ModelInferRequest is a single inference request. It is also the message
// type a client sends on ModelStreamInfer.
type ModelInferRequest struct{ dynamicMessage }

func (m *ModelInferRequest) ProtoReflect() protoreflect.Message {
	return m.reflect(modelInferRequestDesc)
}

func (m *ModelInferRequest) GetModelName() string {
	if m == nil {
		return ""
	}
	return getString(m.ProtoReflect(), "model_name")
}

func (m *ModelInferRequest) SetModelName(name string) {
	setString(m.ProtoReflect(), "model_name", name)
}

func (m *ModelInferRequest) GetModelVersion() string {
	if m == nil {
		return ""
	}
	return getString(m.ProtoReflect(), "model_version")
}

func (m *ModelInferRequest) GetId() string {
	if m == nil {
		return ""
	}
	return getString(m.ProtoReflect(), "id")
}

func (m *ModelInferRequest) SetId(id string) { setString(m.ProtoReflect(), "id", id) }

// AddRawInputContents appends one raw input tensor payload.
func (m *ModelInferRequest) AddRawInputContents(raw []byte) {
	r := m.ProtoReflect()
	list := r.Mutable(r.Descriptor().Fields().ByName("raw_input_contents")).List()
	list.Append(protoreflect.ValueOfBytes(raw))
}

// ModelInferResponse is the result of a single inference request.
type ModelInferResponse struct{ dynamicMessage }

func (m *ModelInferResponse) ProtoReflect() protoreflect.Message {
	return m.reflect(modelInferResponseDesc)
}

func (m *ModelInferResponse) GetModelName() string {
	if m == nil {
		return ""
	}
	return getString(m.ProtoReflect(), "model_name")
}

func (m *ModelInferResponse) SetModelName(name string) {
	setString(m.ProtoReflect(), "model_name", name)
}

func (m *ModelInferResponse) GetId() string {
	if m == nil {
		return ""
	}
	return getString(m.ProtoReflect(), "id")
}

func (m *ModelInferResponse) SetId(id string) { setString(m.ProtoReflect(), "id", id) }

// GetRawOutputContents returns the raw output tensor payloads.
func (m *ModelInferResponse) GetRawOutputContents() [][]byte {
	if m == nil {
		return nil
	}
	r := m.ProtoReflect()
	list := r.Get(r.Descriptor().Fields().ByName("raw_output_contents")).List()
	out := make([][]byte, 0, list.Len())
	for i := 0; i < list.Len(); i++ {
		out = append(out, list.Get(i).Bytes())
	}
	return out
}

// AddRawOutputContents appends one raw output tensor payload.
func (m *ModelInferResponse) AddRawOutputContents(raw []byte) {
	r := m.ProtoReflect()
	list := r.Mutable(r.Descriptor().Fields().ByName("raw_output_contents")).List()
	list.Append(protoreflect.ValueOfBytes(raw))
}

// ModelStreamInferResponse is one message on the ModelStreamInfer response
// stream. ErrorMessage reports a per-message failure without ending the stream.
type ModelStreamInferResponse struct{ dynamicMessage }

func (m *ModelStreamInferResponse) ProtoReflect() protoreflect.Message {
	return m.reflect(modelStreamInferResponseDesc)
}

func (m *ModelStreamInferResponse) GetErrorMessage() string {
	if m == nil {
		return ""
	}
	return getString(m.ProtoReflect(), "error_message")
}

func (m *ModelStreamInferResponse) SetErrorMessage(msg string) {
	setString(m.ProtoReflect(), "error_message", msg)
}

// GetInferResponse returns the embedded inference response, sharing storage
// with m, or nil when unset.
func (m *ModelStreamInferResponse) GetInferResponse() *ModelInferResponse {
	if m == nil {
		return nil
	}
	r := m.ProtoReflect()
	fd := r.Descriptor().Fields().ByName("infer_response")
	if !r.Has(fd) {
		return nil
	}
	dyn, ok := r.Get(fd).Message().(*dynamicpb.Message)
	if !ok {
		return nil
	}
	return &ModelInferResponse{dynamicMessage{msg: dyn}}
}

func (m *ModelStreamInferResponse) SetInferResponse(resp *ModelInferResponse) {
	r := m.ProtoReflect()
	fd := r.Descriptor().Fields().ByName("infer_response")
	if resp == nil {
		r.Clear(fd)
		return
	}
	r.Set(fd, protoreflect.ValueOfMessage(resp.ProtoReflect()))
}

// ModelConfigRequest asks for a model's configuration.
type ModelConfigRequest struct{ dynamicMessage }

func (m *ModelConfigRequest) ProtoReflect() protoreflect.Message {
	return m.reflect(modelConfigRequestDesc)
}

func (m *ModelConfigRequest) GetName() string {
	if m == nil {
		return ""
	}
	return getString(m.ProtoReflect(), "name")
}

func (m *ModelConfigRequest) SetName(name string) { setString(m.ProtoReflect(), "name", name) }

func (m *ModelConfigRequest) GetVersion() string {
	if m == nil {
		return ""
	}
	return getString(m.ProtoReflect(), "version")
}

func (m *ModelConfigRequest) SetVersion(version string) {
	setString(m.ProtoReflect(), "version", version)
}

// ModelConfig is a model's configuration.
type ModelConfig struct{ dynamicMessage }

func (m *ModelConfig) ProtoReflect() protoreflect.Message {
	return m.reflect(modelConfigDesc)
}

func (m *ModelConfig) GetName() string {
	if m == nil {
		return ""
	}
	return getString(m.ProtoReflect(), "name")
}

func (m *ModelConfig) SetName(name string) { setString(m.ProtoReflect(), "name", name) }

func (m *ModelConfig) GetPlatform() string {
	if m == nil {
		return ""
	}
	return getString(m.ProtoReflect(), "platform")
}

func (m *ModelConfig) SetPlatform(platform string) {
	setString(m.ProtoReflect(), "platform", platform)
}

func (m *ModelConfig) GetMaxBatchSize() int32 {
	if m == nil {
		return 0
	}
	r := m.ProtoReflect()
	return int32(r.Get(r.Descriptor().Fields().ByName("max_batch_size")).Int())
}

func (m *ModelConfig) SetMaxBatchSize(size int32) {
	r := m.ProtoReflect()
	r.Set(r.Descriptor().Fields().ByName("max_batch_size"), protoreflect.ValueOfInt32(size))
}

// ModelConfigResponse carries a model's configuration.
type ModelConfigResponse struct{ dynamicMessage }

func (m *ModelConfigResponse) ProtoReflect() protoreflect.Message {
	return m.reflect(modelConfigResponseDesc)
}

func (m *ModelConfigResponse) GetConfig() *ModelConfig {
	if m == nil {
		return nil
	}
	r := m.ProtoReflect()
	fd := r.Descriptor().Fields().ByName("config")
	if !r.Has(fd) {
		return nil
	}
	dyn, ok := r.Get(fd).Message().(*dynamicpb.Message)
	if !ok {
		return nil
	}
	return &ModelConfig{dynamicMessage{msg: dyn}}
}

func (m *ModelConfigResponse) SetConfig(cfg *ModelConfig) {
	r := m.ProtoReflect()
	fd := r.Descriptor().Fields().ByName("config")
	if cfg == nil {
		r.Clear(fd)
		return
	}
	r.Set(fd, protoreflect.ValueOfMessage(cfg.ProtoReflect()))
}
