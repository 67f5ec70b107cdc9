package jobposting

import (
	"reflect"
	"testing"
)

func TestFromText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Posting
	}{
		{
			name:  "empty",
			input: "  \n ",
			want:  Posting{Title: NotAvailable, Company: NotAvailable, Description: ""},
		},
		{
			name:  "title and bullets",
			input: "\n  Senior Go Engineer \nWe build things.\n- Go\n* Kubernetes\n• PostgreSQL\n-\nplain line",
			want: Posting{
				Title:        "Senior Go Engineer",
				Company:      NotAvailable,
				Description:  "Senior Go Engineer \nWe build things.\n- Go\n* Kubernetes\n• PostgreSQL\n-\nplain line",
				Requirements: []string{"Go", "Kubernetes", "PostgreSQL"},
			},
		},
		{
			name:  "single line",
			input: "Data Engineer",
			want:  Posting{Title: "Data Engineer", Company: NotAvailable, Description: "Data Engineer"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromText(tt.input)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("FromText() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestEmpty(t *testing.T) {
	if !FromText("").Empty() {
		t.Fatal("expected empty posting")
	}
	if !(Posting{Description: NotAvailable}).Empty() {
		t.Fatal("expected N/A description to be empty")
	}
	if FromText("Engineer").Empty() {
		t.Fatal("expected non-empty posting")
	}
}
