package util

import (
	"reflect"
	"testing"
)

func TestParseBoolEnv(t *testing.T) {
	tests := []struct {
		value        string
		defaultValue bool
		want         bool
	}{
		{"true", false, true},
		{"TRUE", false, true},
		{"1", false, true},
		{"yes", false, true},
		{"on", false, true},
		{"false", true, false},
		{"0", true, false},
		{"no", true, false},
		{"off", true, false},
		{" true ", false, true},
		{"maybe", true, true},
		{"maybe", false, false},
		{"", true, true},
		{"", false, false},
	}
	for _, tt := range tests {
		t.Setenv("TEST_BOOL", tt.value)
		if got := ParseBoolEnv("TEST_BOOL", tt.defaultValue); got != tt.want {
			t.Errorf("ParseBoolEnv(%q, %v) = %v, want %v", tt.value, tt.defaultValue, got, tt.want)
		}
	}
}

func TestParseListEnv(t *testing.T) {
	tests := []struct {
		value string
		want  []string
	}{
		{"", nil},
		{"one", []string{"one"}},
		{"one,two,three", []string{"one", "two", "three"}},
		{" one , two ", []string{"one", "two"}},
		{"one,,two,", []string{"one", "two"}},
		{" , , ", nil},
	}
	for _, tt := range tests {
		t.Setenv("TEST_LIST", tt.value)
		if got := ParseListEnv("TEST_LIST"); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("ParseListEnv(%q) = %v, want %v", tt.value, got, tt.want)
		}
	}
}

func TestParseIntEnv(t *testing.T) {
	tests := []struct {
		value        string
		defaultValue int
		want         int
	}{
		{"", 42, 42},
		{"7", 42, 7},
		{" 7 ", 42, 7},
		{"-3", 42, -3},
		{"seven", 42, 42},
	}
	for _, tt := range tests {
		t.Setenv("TEST_INT", tt.value)
		if got := ParseIntEnv("TEST_INT", tt.defaultValue); got != tt.want {
			t.Errorf("ParseIntEnv(%q, %d) = %d, want %d", tt.value, tt.defaultValue, got, tt.want)
		}
	}
}
