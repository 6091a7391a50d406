/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package services

import (
	"context"
	"regexp"
	"sort"

	"github.com/syedmustafan/smart-work-sequencer-backend/internal/domain"
)

var ticketKeyPattern = regexp.MustCompile(`[A-Z]+-\d+`)

// ExtractTicketKeys pulls ticket keys like "PROJ-123" out of a commit
// message. Duplicates collapse; the result is sorted so repeated calls on
// the same message yield the same slice.
func ExtractTicketKeys(message string) []string {
	matches := ticketKeyPattern.FindAllString(message, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// linkCommit resolves the extracted keys against the user's known tickets
// and binds the first that matches (keys sorted, so the tie-break is
// stable). A commit stays unlinked when no key resolves, even if keys
// were extracted; Unlinked always mirrors the absence of a ticket link.
func (s *Service) linkCommit(ctx context.Context, c *domain.Commit) error {
	c.ExtractedKeys = ExtractTicketKeys(c.Message)
	c.TicketID = nil
	for _, key := range c.ExtractedKeys {
		t, err := s.store.TicketByKey(ctx, c.UserID, key)
		if err != nil {
			return err
		}
		if t != nil {
			c.TicketID = &t.ID
			break
		}
	}
	c.Unlinked = c.TicketID == nil
	return nil
}
