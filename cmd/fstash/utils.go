package main

import (
	"net/url"
	"strings"
)

func setIfNotEmpty(values url.Values, key, value string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	values.Set(key, value)
}
