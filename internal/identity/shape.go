package identity

// placeholderUserID is used by path (c) when metadata is entirely absent
// (spec §4.C step 6 path c). It is intentionally not a freshly-synthesized
// id — rules that don't require identity don't need a unique session
// handle, only a well-formed placeholder.
const placeholderUserID = "user_00000000000000000000000000000000_account__session_00000000-0000-0000-0000-000000000000"

// ApplyBodyShape implements spec §4.C step 6's three sub-paths, dispatched
// on (rule.RequireIdentity, isCli). It mutates obj in place and may return
// an error only from user-id synthesis (crypto/rand failure).
func ApplyBodyShape(obj map[string]interface{}, rule ModelRule, isCli bool) error {
	switch {
	case rule.RequireIdentity && isCli:
		return applyRepairOnly(obj)
	case rule.RequireIdentity && !isCli:
		return applyGenericSpoof(obj)
	default:
		applyNoIdentityRequired(obj)
		return nil
	}
}

// applyRepairOnly is path (a): the request is already CLI-shaped but may be
// missing pieces.
func applyRepairOnly(obj map[string]interface{}) error {
	system := NormalizeSystemArray(obj["system"])

	switch {
	case len(system) == 0:
		system = CanonicalPrefix()

	case blockContainsBillingSentinel(system[0]):
		if len(system) > 1 {
			ensureCacheControl(system[1])
		}

	case blockStartsWithIdentityPrefix(system[0]):
		ensureCacheControl(system[0])
		if !looksLikeFullInstructions(system) {
			system = append(system, instructionsBlock())
		}
		if BillingText != "" {
			prefixed := make([]interface{}, 0, len(system)+1)
			prefixed = append(prefixed, billingBlock())
			prefixed = append(prefixed, system...)
			system = prefixed
		}

	default:
		prefixed := make([]interface{}, 0, len(CanonicalPrefix())+len(system))
		prefixed = append(prefixed, CanonicalPrefix()...)
		prefixed = append(prefixed, system...)
		system = prefixed
	}

	obj["system"] = system
	setToolsIfEmpty(obj)
	return enforceUserID(obj)
}

// applyGenericSpoof is path (b): a Web UI or OpenAI-compatible client is
// made to look like the CLI.
func applyGenericSpoof(obj map[string]interface{}) error {
	system := NormalizeSystemArray(obj["system"])

	if !anyBlockHasIdentityPrefix(system) {
		prefixed := make([]interface{}, 0, len(CanonicalPrefix())+len(system))
		prefixed = append(prefixed, CanonicalPrefix()...)
		prefixed = append(prefixed, system...)
		system = prefixed
	}

	obj["system"] = system
	setToolsIfEmpty(obj)
	return enforceUserID(obj)
}

// applyNoIdentityRequired is path (c): small/fast models the upstream
// doesn't impersonation-check.
func applyNoIdentityRequired(obj map[string]interface{}) {
	if isSystemMissingOrEmpty(obj["system"]) {
		obj["system"] = []interface{}{textBlock(IdentityPrefix)}
	}

	if tools, ok := obj["tools"].([]interface{}); !ok || tools == nil {
		obj["tools"] = []interface{}{}
	}

	if _, ok := obj["metadata"].(map[string]interface{}); !ok {
		obj["metadata"] = map[string]interface{}{"user_id": placeholderUserID}
	}
}

func setToolsIfEmpty(obj map[string]interface{}) {
	tools, ok := obj["tools"].([]interface{})
	if !ok || len(tools) == 0 {
		obj["tools"] = CloneToolCatalog()
	}
}

func enforceUserID(obj map[string]interface{}) error {
	metadata, ok := obj["metadata"].(map[string]interface{})
	if !ok {
		metadata = map[string]interface{}{}
		obj["metadata"] = metadata
	}

	userID, _ := metadata["user_id"].(string)
	if IsValidUserID(userID) {
		return nil
	}

	fresh, err := NewUserID()
	if err != nil {
		return err
	}
	metadata["user_id"] = fresh
	return nil
}

func anyBlockHasIdentityPrefix(system []interface{}) bool {
	for _, b := range system {
		if blockStartsWithIdentityPrefix(b) {
			return true
		}
	}
	return false
}

func isSystemMissingOrEmpty(system interface{}) bool {
	switch s := system.(type) {
	case nil:
		return true
	case string:
		return s == ""
	case []interface{}:
		return len(s) == 0
	default:
		return false
	}
}
