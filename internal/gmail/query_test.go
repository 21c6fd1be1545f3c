package gmail

import "testing"

func TestSearchCriteria_Query(t *testing.T) {
	tests := []struct {
		name     string
		criteria SearchCriteria
		want     string
	}{
		{
			name:     "empty",
			criteria: SearchCriteria{},
			want:     "",
		},
		{
			name:     "from only",
			criteria: SearchCriteria{From: "alice@example.com"},
			want:     "from:alice@example.com",
		},
		{
			name:     "subject with spaces is quoted",
			criteria: SearchCriteria{Subject: "quarterly report"},
			want:     `subject:"quarterly report"`,
		},
		{
			name:     "label spaces become dashes",
			criteria: SearchCriteria{Label: "My Projects"},
			want:     "label:My-Projects",
		},
		{
			name: "all fields in order",
			criteria: SearchCriteria{
				From:          "alice@example.com",
				To:            "bob@example.com",
				Subject:       "hi",
				Label:         "work",
				After:         "2024/01/01",
				Before:        "2024/02/01",
				HasAttachment: true,
				ReadStatus:    ReadStatusUnread,
			},
			want: "from:alice@example.com to:bob@example.com subject:hi label:work after:2024/01/01 before:2024/02/01 has:attachment is:unread",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.criteria.Query(); got != tt.want {
				t.Errorf("Query() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSearchCriteria_Validate(t *testing.T) {
	tests := []struct {
		name     string
		criteria SearchCriteria
		wantErr  bool
	}{
		{"valid dates", SearchCriteria{After: "2024/01/31", Before: "2024/12/01"}, false},
		{"dashed date", SearchCriteria{After: "2024-01-31"}, true},
		{"impossible date", SearchCriteria{Before: "2024/13/01"}, true},
		{"read status", SearchCriteria{ReadStatus: ReadStatusRead}, false},
		{"bad read status", SearchCriteria{ReadStatus: "starred"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.criteria.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSearchCriteria_IsZero(t *testing.T) {
	if !(SearchCriteria{}).IsZero() {
		t.Error("IsZero() = false for empty criteria")
	}
	if (SearchCriteria{HasAttachment: true}).IsZero() {
		t.Error("IsZero() = true with has_attachment set")
	}
}
