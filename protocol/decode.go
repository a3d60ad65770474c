package protocol

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/valyala/fastjson"
)

var (
	validate    = validator.New()
	parserPool  fastjson.ParserPool
	emptyObject = []byte("{}")
)

// DecodeError describes a frame the gateway could not turn into an event.
// Type and RequestID are filled in as far as the frame could be read.
type DecodeError struct {
	Type      string
	RequestID string
	Reason    string
}

func (e *DecodeError) Error() string {
	if e.Type == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Reason)
}

// Envelope is the routing part of an inbound frame.
type Envelope struct {
	Type      string
	RequestID string
}

// Decode parses one inbound text frame into its envelope and a validated
// event payload.
func Decode(raw []byte) (Envelope, Inbound, error) {
	p := parserPool.Get()
	defer parserPool.Put(p)

	v, err := p.ParseBytes(raw)
	if err != nil {
		return Envelope{}, nil, &DecodeError{Reason: "malformed JSON frame"}
	}
	if v.Type() != fastjson.TypeObject {
		return Envelope{}, nil, &DecodeError{Reason: "frame must be a JSON object"}
	}

	env := Envelope{
		Type:      string(v.GetStringBytes("type")),
		RequestID: string(v.GetStringBytes("request_id")),
	}
	if env.Type == "" {
		return env, nil, &DecodeError{RequestID: env.RequestID, Reason: "missing event type"}
	}

	decode, ok := inboundDecoders[env.Type]
	if !ok {
		return env, nil, &DecodeError{Type: env.Type, RequestID: env.RequestID, Reason: "unknown event type"}
	}

	data := emptyObject
	if d := v.Get("data"); d != nil && d.Type() != fastjson.TypeNull {
		if d.Type() != fastjson.TypeObject {
			return env, nil, &DecodeError{Type: env.Type, RequestID: env.RequestID, Reason: "data must be an object"}
		}
		data = d.MarshalTo(nil)
	}

	ev, err := decode(data)
	if err != nil {
		return env, nil, &DecodeError{Type: env.Type, RequestID: env.RequestID, Reason: describe(err)}
	}
	return env, ev, nil
}

// DecodeAuth extracts the token from a first-frame auth handshake. Both
// {"type":"auth","token":"..."} and {"type":"auth","data":{"token":"..."}}
// are accepted.
func DecodeAuth(raw []byte) (string, error) {
	p := parserPool.Get()
	defer parserPool.Put(p)

	v, err := p.ParseBytes(raw)
	if err != nil {
		return "", &DecodeError{Reason: "malformed JSON frame"}
	}
	if typ := string(v.GetStringBytes("type")); typ != TypeAuth {
		return "", &DecodeError{Type: typ, Reason: "first frame must be an auth event"}
	}
	token := string(v.GetStringBytes("token"))
	if token == "" {
		token = string(v.GetStringBytes("data", "token"))
	}
	if token == "" {
		return "", &DecodeError{Type: TypeAuth, Reason: "missing token"}
	}
	return token, nil
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fmt.Sprintf("%s failed on %s", strings.ToLower(fe.Field()), fe.Tag()))
		}
		return strings.Join(msgs, "; ")
	}
	return "invalid event payload"
}
