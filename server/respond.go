package server

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"beatmarket/core/apperr"
	"beatmarket/logger"
)

// multipartMemory is how much of a multipart body is kept in memory; the
// rest spills to temp files.
const multipartMemory = 32 << 20

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("[HTTP] encode response", logger.ErrorField(err))
	}
}

// statusFor maps an error kind to its HTTP status.
func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation, apperr.KindConflict:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// writeError sends {success:false, message}. Wrapped backend errors are
// logged, never sent.
func writeError(w http.ResponseWriter, op string, err error) {
	kind := apperr.KindOf(err)
	status := statusFor(kind)
	msg := apperr.Message(err, "Internal server error")
	if kind == apperr.KindInternal {
		msg = "Internal server error"
	}

	if status >= http.StatusInternalServerError {
		logger.Error(op+" request failed", logger.String("kind", kind.String()), logger.ErrorField(err))
	} else {
		logger.Warn(op+" request rejected", logger.String("kind", kind.String()), logger.String("message", msg))
	}
	writeJSON(w, status, map[string]interface{}{"success": false, "message": msg})
}

// readPayload decodes a JSON, urlencoded or multipart body into a map with
// the client's field names. An empty body yields an empty map.
func readPayload(r *http.Request) (map[string]any, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "multipart/form-data":
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			return nil, bodyError(err)
		}
		return formPayload(r.MultipartForm.Value), nil
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return nil, bodyError(err)
		}
		return formPayload(r.PostForm), nil
	}

	payload := map[string]any{}
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&payload); err != nil {
		if errors.Is(err, io.EOF) {
			return payload, nil
		}
		return nil, bodyError(err)
	}
	return payload, nil
}

func bodyError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return apperr.Validation("Request body too large")
	}
	return apperr.Validation("Invalid request body")
}

var indexedKey = regexp.MustCompile(`^(.+)\[(\d*)\]$`)

// formPayload flattens form values. Indexed keys such as genreCategory[0]
// and repeated keys are collected into lists.
func formPayload(values url.Values) map[string]any {
	type item struct {
		index int
		value string
	}
	indexed := map[string][]item{}
	out := map[string]any{}

	for key, vals := range values {
		if m := indexedKey.FindStringSubmatch(key); m != nil {
			idx := -1
			if m[2] != "" {
				idx, _ = strconv.Atoi(m[2])
			}
			for _, v := range vals {
				indexed[m[1]] = append(indexed[m[1]], item{index: idx, value: v})
			}
			continue
		}
		switch len(vals) {
		case 0:
		case 1:
			out[key] = vals[0]
		default:
			list := make([]any, len(vals))
			for i, v := range vals {
				list[i] = v
			}
			out[key] = list
		}
	}

	for name, items := range indexed {
		sort.SliceStable(items, func(i, j int) bool { return items[i].index < items[j].index })
		list := make([]any, 0, len(items))
		if prev, ok := out[name]; ok {
			switch p := prev.(type) {
			case []any:
				list = append(list, p...)
			default:
				list = append(list, p)
			}
		}
		for _, it := range items {
			list = append(list, it.value)
		}
		out[name] = list
	}
	return out
}

func queryBool(r *http.Request, key string) bool {
	b, _ := strconv.ParseBool(strings.TrimSpace(r.URL.Query().Get(key)))
	return b
}
