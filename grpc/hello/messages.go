// Package hello implements rainbow.hello.v1.HelloService, one RPC per call shape, on top of the
// streaming state machines. Messages are plain structs carried by the JSON codec.
package hello

type HelloRequest struct {
	Name string `json:"name"`
}

type HelloResponse struct {
	Message string `json:"message"`
}

type StreamChunk struct {
	Number int64 `json:"number"`
}

type StreamSummary struct {
	ChunkCount    int64   `json:"chunkCount"`
	TotalNumber   int64   `json:"totalNumber"`
	AverageNumber float64 `json:"averageNumber"`
	Message       string  `json:"message"`
}

type ChatMessage struct {
	Username string `json:"username"`
	Message  string `json:"message"`
	IsError  bool   `json:"isError"`
}
