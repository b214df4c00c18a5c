// Package inference defines the KServe v2 inference protocol used by Triton
// style model servers: the request and response messages and the
// inference.GRPCInferenceService service definition.
//
// Messages are backed by dynamicpb over a descriptor assembled at init time.
// Only the fields the fixture reads or writes are modelled; every other field
// a peer sends is retained as unknown data and re-emitted verbatim on marshal,
// so responses relayed or replayed through this package are byte-faithful.
package inference

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"
)

const (
	// ProtoPackage is the protobuf package of the inference protocol.
	ProtoPackage = "inference"
	// ServiceName is the fully-qualified gRPC service name.
	ServiceName = ProtoPackage + ".GRPCInferenceService"

	fileName = "grpc_service.proto"
)

// File is the descriptor for the modelled subset of grpc_service.proto.
var File = mustBuildFile()

var (
	serverLiveRequestDesc        = messageDesc("ServerLiveRequest")
	serverLiveResponseDesc       = messageDesc("ServerLiveResponse")
	serverReadyRequestDesc       = messageDesc("ServerReadyRequest")
	serverReadyResponseDesc      = messageDesc("ServerReadyResponse")
	modelReadyRequestDesc        = messageDesc("ModelReadyRequest")
	modelReadyResponseDesc       = messageDesc("ModelReadyResponse")
	modelInferRequestDesc        = messageDesc("ModelInferRequest")
	modelInferResponseDesc       = messageDesc("ModelInferResponse")
	modelStreamInferResponseDesc = messageDesc("ModelStreamInferResponse")
	modelConfigRequestDesc       = messageDesc("ModelConfigRequest")
	modelConfigResponseDesc      = messageDesc("ModelConfigResponse")
	modelConfigDesc              = messageDesc("ModelConfig")
)

func mustBuildFile() protoreflect.FileDescriptor {
	fd, err := protodesc.NewFile(fileDescriptorProto(), nil)
	if err != nil {
		panic(fmt.Sprintf("build %s descriptor: %v", fileName, err))
	}
	return fd
}

func messageDesc(name protoreflect.Name) protoreflect.MessageDescriptor {
	md := File.Messages().ByName(name)
	if md == nil {
		panic(fmt.Sprintf("%s: message %s is not defined", fileName, name))
	}
	return md
}

func fileDescriptorProto() *descriptorpb.FileDescriptorProto {
	return &descriptorpb.FileDescriptorProto{
		Name:    proto.String(fileName),
		Package: proto.String(ProtoPackage),
		Syntax:  proto.String("proto3"),
		MessageType: []*descriptorpb.DescriptorProto{
			message("ServerLiveRequest"),
			message("ServerLiveResponse", scalar("live", 1, descriptorpb.FieldDescriptorProto_TYPE_BOOL)),
			message("ServerReadyRequest"),
			message("ServerReadyResponse", scalar("ready", 1, descriptorpb.FieldDescriptorProto_TYPE_BOOL)),
			message("ModelReadyRequest",
				scalar("name", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING),
				scalar("version", 2, descriptorpb.FieldDescriptorProto_TYPE_STRING),
			),
			message("ModelReadyResponse", scalar("ready", 1, descriptorpb.FieldDescriptorProto_TYPE_BOOL)),
			inferParameter(),
			inferTensorContents(),
			modelInferRequest(),
			modelInferResponse(),
			message("ModelStreamInferResponse",
				scalar("error_message", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING),
				messageField("infer_response", 2, ".inference.ModelInferResponse"),
			),
			message("ModelConfigRequest",
				scalar("name", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING),
				scalar("version", 2, descriptorpb.FieldDescriptorProto_TYPE_STRING),
			),
			// ModelConfig carries dozens of backend specific fields; the
			// unmodelled ones survive as unknown fields.
			message("ModelConfig",
				scalar("name", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING),
				scalar("platform", 2, descriptorpb.FieldDescriptorProto_TYPE_STRING),
				scalar("max_batch_size", 4, descriptorpb.FieldDescriptorProto_TYPE_INT32),
				scalar("backend", 17, descriptorpb.FieldDescriptorProto_TYPE_STRING),
			),
			message("ModelConfigResponse", messageField("config", 1, ".inference.ModelConfig")),
		},
	}
}

func inferParameter() *descriptorpb.DescriptorProto {
	choice := func(f *descriptorpb.FieldDescriptorProto) *descriptorpb.FieldDescriptorProto {
		f.OneofIndex = proto.Int32(0)
		return f
	}
	msg := message("InferParameter",
		choice(scalar("bool_param", 1, descriptorpb.FieldDescriptorProto_TYPE_BOOL)),
		choice(scalar("int64_param", 2, descriptorpb.FieldDescriptorProto_TYPE_INT64)),
		choice(scalar("string_param", 3, descriptorpb.FieldDescriptorProto_TYPE_STRING)),
		choice(scalar("double_param", 4, descriptorpb.FieldDescriptorProto_TYPE_DOUBLE)),
		choice(scalar("uint64_param", 5, descriptorpb.FieldDescriptorProto_TYPE_UINT64)),
	)
	msg.OneofDecl = []*descriptorpb.OneofDescriptorProto{{Name: proto.String("parameter_choice")}}
	return msg
}

func inferTensorContents() *descriptorpb.DescriptorProto {
	return message("InferTensorContents",
		repeated(scalar("bool_contents", 1, descriptorpb.FieldDescriptorProto_TYPE_BOOL)),
		repeated(scalar("int_contents", 2, descriptorpb.FieldDescriptorProto_TYPE_INT32)),
		repeated(scalar("int64_contents", 3, descriptorpb.FieldDescriptorProto_TYPE_INT64)),
		repeated(scalar("uint_contents", 4, descriptorpb.FieldDescriptorProto_TYPE_UINT32)),
		repeated(scalar("uint64_contents", 5, descriptorpb.FieldDescriptorProto_TYPE_UINT64)),
		repeated(scalar("fp32_contents", 6, descriptorpb.FieldDescriptorProto_TYPE_FLOAT)),
		repeated(scalar("fp64_contents", 7, descriptorpb.FieldDescriptorProto_TYPE_DOUBLE)),
		repeated(scalar("bytes_contents", 8, descriptorpb.FieldDescriptorProto_TYPE_BYTES)),
	)
}

func modelInferRequest() *descriptorpb.DescriptorProto {
	const scope = ".inference.ModelInferRequest"
	input := message("InferInputTensor",
		scalar("name", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING),
		scalar("datatype", 2, descriptorpb.FieldDescriptorProto_TYPE_STRING),
		repeated(scalar("shape", 3, descriptorpb.FieldDescriptorProto_TYPE_INT64)),
		mapField("parameters", 4, scope+".InferInputTensor"),
		messageField("contents", 5, ".inference.InferTensorContents"),
	)
	input.NestedType = []*descriptorpb.DescriptorProto{parametersEntry()}
	output := message("InferRequestedOutputTensor",
		scalar("name", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING),
		mapField("parameters", 2, scope+".InferRequestedOutputTensor"),
	)
	output.NestedType = []*descriptorpb.DescriptorProto{parametersEntry()}

	msg := message("ModelInferRequest",
		scalar("model_name", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING),
		scalar("model_version", 2, descriptorpb.FieldDescriptorProto_TYPE_STRING),
		scalar("id", 3, descriptorpb.FieldDescriptorProto_TYPE_STRING),
		mapField("parameters", 4, scope),
		repeated(messageField("inputs", 5, scope+".InferInputTensor")),
		repeated(messageField("outputs", 6, scope+".InferRequestedOutputTensor")),
		repeated(scalar("raw_input_contents", 7, descriptorpb.FieldDescriptorProto_TYPE_BYTES)),
	)
	msg.NestedType = []*descriptorpb.DescriptorProto{input, output, parametersEntry()}
	return msg
}

func modelInferResponse() *descriptorpb.DescriptorProto {
	const scope = ".inference.ModelInferResponse"
	output := message("InferOutputTensor",
		scalar("name", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING),
		scalar("datatype", 2, descriptorpb.FieldDescriptorProto_TYPE_STRING),
		repeated(scalar("shape", 3, descriptorpb.FieldDescriptorProto_TYPE_INT64)),
		mapField("parameters", 4, scope+".InferOutputTensor"),
		messageField("contents", 5, ".inference.InferTensorContents"),
	)
	output.NestedType = []*descriptorpb.DescriptorProto{parametersEntry()}

	msg := message("ModelInferResponse",
		scalar("model_name", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING),
		scalar("model_version", 2, descriptorpb.FieldDescriptorProto_TYPE_STRING),
		scalar("id", 3, descriptorpb.FieldDescriptorProto_TYPE_STRING),
		mapField("parameters", 4, scope),
		repeated(messageField("outputs", 5, scope+".InferOutputTensor")),
		repeated(scalar("raw_output_contents", 6, descriptorpb.FieldDescriptorProto_TYPE_BYTES)),
	)
	msg.NestedType = []*descriptorpb.DescriptorProto{output, parametersEntry()}
	return msg
}

// parametersEntry is the synthesized map entry for map<string, InferParameter>.
func parametersEntry() *descriptorpb.DescriptorProto {
	entry := message("ParametersEntry",
		scalar("key", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING),
		messageField("value", 2, ".inference.InferParameter"),
	)
	entry.Options = &descriptorpb.MessageOptions{MapEntry: proto.Bool(true)}
	return entry
}

func message(name string, fields ...*descriptorpb.FieldDescriptorProto) *descriptorpb.DescriptorProto {
	return &descriptorpb.DescriptorProto{
		Name:  proto.String(name),
		Field: fields,
	}
}

func scalar(name string, number int32, typ descriptorpb.FieldDescriptorProto_Type) *descriptorpb.FieldDescriptorProto {
	return &descriptorpb.FieldDescriptorProto{
		Name:   proto.String(name),
		Number: proto.Int32(number),
		Label:  descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
		Type:   typ.Enum(),
	}
}

func messageField(name string, number int32, typeName string) *descriptorpb.FieldDescriptorProto {
	f := scalar(name, number, descriptorpb.FieldDescriptorProto_TYPE_MESSAGE)
	f.TypeName = proto.String(typeName)
	return f
}

func mapField(name string, number int32, scope string) *descriptorpb.FieldDescriptorProto {
	return repeated(messageField(name, number, scope+".ParametersEntry"))
}

func repeated(f *descriptorpb.FieldDescriptorProto) *descriptorpb.FieldDescriptorProto {
	f.Label = descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum()
	return f
}
