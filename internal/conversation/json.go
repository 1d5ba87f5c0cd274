package conversation

// FromRaw decodes the `messages` field of a parsed JSON request body (a
// []interface{} of message objects, per spec §9's dynamic-JSON design note)
// into typed Messages. Entries that don't look like a well-formed message
// are kept via Raw so re-encoding never drops client data; Content stays
// empty for them and they're left untouched by sanitization.
func FromRaw(raw []interface{}) []Message {
	out := make([]Message, 0, len(raw))
	for _, entry := range raw {
		m, ok := entry.(map[string]interface{})
		if !ok {
			out = append(out, Message{Raw: map[string]interface{}{"_unparsed": entry}})
			continue
		}
		out = append(out, messageFromRaw(m))
	}
	return out
}

func messageFromRaw(m map[string]interface{}) Message {
	role, _ := m["role"].(string)
	msg := Message{Role: Role(role), Raw: m}

	content, ok := m["content"].([]interface{})
	if !ok {
		// String content (plain-text shorthand) or absent content: nothing
		// for the sanitizer to walk, but Raw still carries it.
		return msg
	}

	msg.Content = make([]ContentBlock, 0, len(content))
	for _, entry := range content {
		block, ok := entry.(map[string]interface{})
		if !ok {
			msg.Content = append(msg.Content, ContentBlock{Raw: map[string]interface{}{"_unparsed": entry}})
			continue
		}
		msg.Content = append(msg.Content, blockFromRaw(block))
	}
	return msg
}

func blockFromRaw(block map[string]interface{}) ContentBlock {
	typ, _ := block["type"].(string)
	b := ContentBlock{Type: BlockType(typ), Raw: block}
	switch b.Type {
	case BlockToolUse:
		b.ID, _ = block["id"].(string)
	case BlockToolResult:
		b.ToolUseID, _ = block["tool_use_id"].(string)
	}
	return b
}

// ToRaw re-serializes Messages back into the []interface{} shape a JSON
// body expects, reflecting any content-block removal back into each
// message's Raw "content" field so downstream json.Marshal sees it.
func ToRaw(messages []Message) []interface{} {
	out := make([]interface{}, len(messages))
	for i, m := range messages {
		out[i] = messageToRaw(m)
	}
	return out
}

func messageToRaw(m Message) interface{} {
	if v, ok := m.Raw["_unparsed"]; ok && m.Role == "" && m.Content == nil {
		return v
	}
	raw := m.Raw
	if raw == nil {
		raw = map[string]interface{}{"role": string(m.Role)}
	}
	if m.Content != nil {
		content := make([]interface{}, len(m.Content))
		for i, b := range m.Content {
			if v, ok := b.Raw["_unparsed"]; ok && b.Type == "" {
				content[i] = v
				continue
			}
			content[i] = b.Raw
		}
		raw["content"] = content
	}
	return raw
}
