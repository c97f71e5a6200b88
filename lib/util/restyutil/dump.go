package restyutil

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/go-resty/resty/v2"
)

// Dumper writes every exchange of the clients attached to it to an
// Output, numbered in the order the responses arrived.
type Dumper struct {
	output  Output
	counter atomic.Uint64
	redact  []string
}

// NewDumper creates a dumper, the values of the form and query fields in
// redact are replaced with "***".
func NewDumper(output Output, redact ...string) *Dumper {
	return &Dumper{output: output, redact: redact}
}

func (d *Dumper) Attach(client *resty.Client) {
	client.OnAfterResponse(func(_ *resty.Client, res *resty.Response) error {
		d.write(res)
		return nil
	})
}

func (d *Dumper) write(res *resty.Response) {
	if res.RawResponse == nil || res.Request.RawRequest == nil {
		return
	}
	n := d.counter.Add(1)
	name := path.Base(res.Request.RawRequest.URL.Path)
	id := fmt.Sprintf("%04d-%s-%s.txt", n, strings.ToLower(res.Request.Method), name)
	d.output.Write(id, d.format(res))
}

func formatHeaders(headers http.Header) string {
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var out strings.Builder
	for _, k := range keys {
		for _, v := range headers[k] {
			fmt.Fprintf(&out, "%s: %s\n", k, v)
		}
	}
	return strings.TrimSuffix(out.String(), "\n")
}

func (d *Dumper) requestBody(req *http.Request) string {
	if req.GetBody == nil {
		return ""
	}
	body, err := req.GetBody()
	if err != nil {
		return fmt.Sprintf("failed to get request body: %s", err.Error())
	}
	contents, err := io.ReadAll(body)
	if err != nil {
		return fmt.Sprintf("failed to read request body: %s", err.Error())
	}
	if !strings.HasPrefix(req.Header.Get("Content-Type"), "application/x-www-form-urlencoded") {
		return string(contents)
	}
	form, err := url.ParseQuery(string(contents))
	if err != nil {
		return string(contents)
	}
	return d.redactValues(form).Encode()
}

func (d *Dumper) redactValues(values url.Values) url.Values {
	for _, key := range d.redact {
		if values.Has(key) {
			values.Set(key, "***")
		}
	}
	return values
}

func (d *Dumper) requestUrl(raw *url.URL) string {
	redacted := *raw
	redacted.RawQuery = d.redactValues(raw.Query()).Encode()
	return redacted.String()
}

const exchangeTemplate = `---- REQUEST ----

%s %s

%s

%s

---- RESPONSE ----

%d %s

%s

%s`

func (d *Dumper) format(res *resty.Response) string {
	req := res.Request.RawRequest
	return fmt.Sprintf(
		exchangeTemplate,
		req.Method, d.requestUrl(req.URL),
		formatHeaders(req.Header),
		d.requestBody(req),
		res.StatusCode(), d.requestUrl(res.RawResponse.Request.URL),
		formatHeaders(res.Header()),
		res.String(),
	)
}

// MemoryOutput keeps the dumps in memory.
type MemoryOutput struct {
	mutex sync.Mutex
	dumps map[string]string
}

func NewMemoryOutput() *MemoryOutput {
	return &MemoryOutput{dumps: map[string]string{}}
}

func (m *MemoryOutput) Write(id string, contents string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.dumps[id] = contents
}

func (m *MemoryOutput) Dumps() map[string]string {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	out := make(map[string]string, len(m.dumps))
	for k, v := range m.dumps {
		out[k] = v
	}
	return out
}
