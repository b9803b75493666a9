package models

import "testing"

func TestDeriveStatus(t *testing.T) {
	tests := []struct {
		name     string
		total    int
		success  int
		failure  int
		skipped  int
		expected string
	}{
		{name: "all succeeded", total: 10, success: 10, failure: 0, skipped: 0, expected: ExecutionSuccess},
		{name: "no products", total: 0, success: 0, failure: 0, skipped: 0, expected: ExecutionSuccess},
		{name: "only skipped", total: 3, success: 0, failure: 0, skipped: 3, expected: ExecutionSuccess},
		{name: "mixed outcome", total: 10, success: 7, failure: 3, skipped: 0, expected: ExecutionPartial},
		{name: "mixed with skips", total: 10, success: 5, failure: 3, skipped: 2, expected: ExecutionPartial},
		{name: "all failed", total: 10, success: 0, failure: 10, skipped: 0, expected: ExecutionFailed},
		{name: "every attempted product failed", total: 10, success: 0, failure: 8, skipped: 2, expected: ExecutionFailed},
		{name: "single failure single product", total: 1, success: 0, failure: 1, skipped: 0, expected: ExecutionFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DeriveStatus(tt.total, tt.success, tt.failure, tt.skipped)
			if got != tt.expected {
				t.Fatalf("DeriveStatus(%d, %d, %d, %d) = %q, want %q",
					tt.total, tt.success, tt.failure, tt.skipped, got, tt.expected)
			}
		})
	}
}
