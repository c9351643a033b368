package kafka

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/Rajat083/Internship-Recommender/pkg/config"
)

type changed struct {
	Action string `json:"action"`
	IDs    []int  `json:"ids"`
}

func TestDecodeJSON(t *testing.T) {
	got, err := DecodeJSON[changed]([]byte(`{"action":"upsert","ids":[3,4]}`))
	if err != nil {
		t.Fatal(err)
	}
	if got.Action != "upsert" || len(got.IDs) != 2 {
		t.Errorf("decoded %+v", got)
	}
	if _, err := DecodeJSON[changed]([]byte("{")); err == nil {
		t.Error("expected error for truncated json")
	}
}

func TestProducerEncode(t *testing.T) {
	p := NewProducer(config.KafkaConfig{Brokers: []string{"localhost:9092"}, ConsumerGroup: "recommender-api"}, "internships.changed")
	defer p.Close()

	msgs, err := p.encode([]Event{
		{Key: "7", Value: changed{Action: "upsert", IDs: []int{7}}},
		{Key: "8", Value: changed{Action: "upsert", IDs: []int{8}}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 || string(msgs[0].Key) != "7" {
		t.Fatalf("msgs = %+v", msgs)
	}
	if string(msgs[1].Value) != `{"action":"upsert","ids":[8]}` {
		t.Errorf("value = %s", msgs[1].Value)
	}
	headers := map[string]string{}
	for _, h := range msgs[0].Headers {
		headers[h.Key] = string(h.Value)
	}
	if headers["content-type"] != "application/json" || headers["producer"] != "recommender-api" {
		t.Errorf("headers = %v", headers)
	}
}

func TestProducerEncodeRejectsUnmarshalable(t *testing.T) {
	p := NewProducer(config.KafkaConfig{Brokers: []string{"localhost:9092"}}, "t")
	defer p.Close()
	_, err := p.encode([]Event{{Key: "ok", Value: 1}, {Key: "bad", Value: make(chan int)}})
	if err == nil {
		t.Fatal("expected encode error")
	}
	var unsupported *json.UnsupportedTypeError
	if !errors.As(err, &unsupported) {
		t.Errorf("err = %v does not wrap the marshal error", err)
	}
}
