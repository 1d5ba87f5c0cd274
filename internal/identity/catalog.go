// Package identity implements the model-dispatched rewrite of headers and
// body that makes a generic client indistinguishable from the first-party
// CLI an identity-sensitive upstream expects (spec §4.C). Grounded on the
// teacher's internal/identity package: the header allow/merge logic, the
// system-prompt detection and injection, and the user-id regex all carry
// over its idiom, generalized from a single hardcoded prompt to the
// ModelRule-table-driven design spec §3 calls for.
package identity

// IdentityPrefix is the sentence every CLI-shaped system prompt starts
// with. Step 6 uses it to decide whether a CLI request's system prompt
// only needs repair (path a) and whether a generic client's system prompt
// already carries the identity marker (path b). CLI detection (step 0)
// does not look for it.
const IdentityPrefix = "You are Claude Code, Anthropic's official CLI for Claude."

// BillingSentinel is the substring that marks the optional billing-envelope
// system block some first-party clients prepend ahead of the identity
// block. An empty BillingText means no billing block is injected by this
// build (spec §4.C step 6, path a).
const BillingSentinel = "x-anthropic-billing-header"

// BillingText is the canonical billing-envelope block's text. Left empty by
// default — operators that need it assign this package variable at startup.
var BillingText = ""

// instructionsText is the full CLI instructions block. Real deployments
// swap this for the operator's actual tool-use instructions; this build
// ships a representative placeholder long enough to trip the ">5000 chars"
// full-instructions heuristic spec §4.C step 6 path (a) describes.
var instructionsText = buildInstructionsText()

// InstructionsText returns the canonical instructions block's text.
func InstructionsText() string { return instructionsText }

// ToolCatalog is the fixed tool descriptor array injected when a request
// has no tools of its own (spec §4.C step 6). Treated as an opaque
// structure by this package (spec §3): callers never inspect tool schemas,
// only whether the array is empty.
var ToolCatalog = []map[string]interface{}{
	{
		"name":        "Bash",
		"description": "Execute a shell command and return its output.",
		"input_schema": map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"command": map[string]interface{}{"type": "string"},
			},
			"required": []interface{}{"command"},
		},
	},
	{
		"name":        "Read",
		"description": "Read a file from the local filesystem.",
		"input_schema": map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"file_path": map[string]interface{}{"type": "string"},
			},
			"required": []interface{}{"file_path"},
		},
	},
	{
		"name":        "Edit",
		"description": "Perform an exact string replacement in a file.",
		"input_schema": map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"file_path":  map[string]interface{}{"type": "string"},
				"old_string": map[string]interface{}{"type": "string"},
				"new_string": map[string]interface{}{"type": "string"},
			},
			"required": []interface{}{"file_path", "old_string", "new_string"},
		},
	},
	{
		"name":        "Grep",
		"description": "Search file contents with a regular expression.",
		"input_schema": map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"pattern": map[string]interface{}{"type": "string"},
				"path":    map[string]interface{}{"type": "string"},
			},
			"required": []interface{}{"pattern"},
		},
	},
}

// CloneToolCatalog returns a deep copy of ToolCatalog suitable for
// embedding in a request body (spec §9: deep copy on every injection).
func CloneToolCatalog() []interface{} {
	out := make([]interface{}, len(ToolCatalog))
	for i, tool := range ToolCatalog {
		out[i] = cloneMap(tool)
	}
	return out
}

func cloneMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		switch t := v.(type) {
		case map[string]interface{}:
			out[k] = cloneMap(t)
		case []interface{}:
			cp := make([]interface{}, len(t))
			copy(cp, t)
			out[k] = cp
		default:
			out[k] = v
		}
	}
	return out
}

// instructionSections mirrors the section-headed structure of a real CLI
// system prompt (Tone and style, Doing tasks, Tool usage, ...) rather than
// one undifferentiated blob — both because that's how the teacher's prompt
// fragments are shaped (internal/identity/prompt.go's promptTemplates list
// several named sections) and because it naturally pushes the block past
// the ">5000 chars" full-instructions heuristic (spec §4.C step 6 path a)
// without reading as padding.
var instructionSections = []struct {
	title      string
	paragraphs []string
}{
	{
		title: "Tone and style",
		paragraphs: []string{
			"Be concise, direct, and to the point. Answer the user's question directly without elaborating, adding caveats, or repeating the question back unless asked.",
			"Only address the specific query or task at hand. Avoid tangential information unless critical for completing the request.",
			"Output text to communicate with the user; all text you output outside tool calls is displayed to the user.",
			"Do not add unnecessary preamble or postamble to your responses. Do not end every response with a summary unless the user asked for one.",
		},
	},
	{
		title: "Doing tasks",
		paragraphs: []string{
			"The user will primarily request engineering tasks: solving bugs, adding functionality, refactoring, explaining code, and more.",
			"Use the available search tools to understand the codebase and the user's query before making changes.",
			"Implement the solution using all tools available to you.",
			"Verify the solution if possible with tests; never assume a specific test framework is in use without checking the codebase first.",
			"When you have completed a task, run the project's lint and typecheck commands if they are known, to ensure the code is correct.",
		},
	},
	{
		title: "Tool usage policy",
		paragraphs: []string{
			"When doing file search, prefer the dedicated search tools to reduce context usage.",
			"You can call multiple tools in a single response when the calls are independent; make all independent calls in the same batch.",
			"Never speculate about tool results — wait for the tool's output before proceeding.",
		},
	},
	{
		title: "Code style",
		paragraphs: []string{
			"NEVER assume that a given library is available, even if it is well known. Check that this codebase already uses it before writing code that depends on it.",
			"When you create a new component, look at existing components first to see how they are written, then follow the codebase's conventions.",
			"When editing code, look at the surrounding context, particularly imports, to understand the codebase's framework and library choices.",
			"Do not add comments unless asked, or unless the code is complex and requires additional context.",
		},
	},
	{
		title: "Following conventions",
		paragraphs: []string{
			"Follow existing project conventions when you write code. Mimic code style, use existing libraries and utilities, and follow existing patterns.",
			"Never introduce a new dependency without checking the package manifest first.",
			"Understand the file's naming conventions, module structure, and typing style before adding new code.",
		},
	},
	{
		title: "Security",
		paragraphs: []string{
			"Follow security best practices. Never introduce code that exposes or logs secrets and keys. Never commit secrets to a repository.",
			"Be careful not to introduce vulnerabilities such as command injection, XSS, or SQL injection. If you notice insecure code you wrote, fix it immediately.",
		},
	},
	{
		title: "Task management",
		paragraphs: []string{
			"Use a todo list for complex, multi-step tasks to track progress and give the user visibility into your plan.",
			"Mark a todo in-progress before starting it and completed immediately after finishing it; don't batch updates.",
			"Skip the todo list for single, trivial tasks where tracking would add no value.",
		},
	},
	{
		title: "Doing tasks with care",
		paragraphs: []string{
			"Consider the reversibility and blast radius of an action before taking it. Local, reversible actions can be taken freely; destructive or hard-to-reverse ones should be confirmed first.",
			"When you encounter an obstacle, investigate the root cause rather than bypassing a safety check to make it go away.",
			"If you discover unfamiliar state — files, branches, configuration you don't recognize — investigate before deleting or overwriting it; it may be another person's in-progress work.",
		},
	},
	{
		title: "Communicating with the user",
		paragraphs: []string{
			"State briefly what you are about to do before a non-trivial tool call, and give short updates at key moments — when you find something, change direction, or hit a blocker.",
			"Write for a reader picking up cold: complete sentences, no unexplained shorthand from earlier in the session.",
			"Match the length of your response to the complexity of the question; a simple question gets a direct answer, not an essay.",
		},
	},
	{
		title: "Proactiveness",
		paragraphs: []string{
			"You are allowed to be proactive, but only when the user asks you to do something; strive for a balance between doing the right thing and not surprising the user with unrequested actions.",
			"Do not add features, refactor surrounding code, or introduce abstractions beyond what the current task requires.",
			"Do not surprise the user by taking actions without asking, like committing code or sending messages on the user's behalf, unless explicitly requested.",
			"If you are not sure about file content or codebase structure pertaining to the user's request, use your tools to read files and gather the relevant information; do not guess or make up an answer.",
		},
	},
	{
		title: "Testing and verification",
		paragraphs: []string{
			"After implementing a change, verify it actually does what it is supposed to by exercising the affected code path, not only by reading the diff.",
			"Type checking and test suites verify code correctness, not feature correctness; when you can run the feature directly, do so before reporting success.",
			"Never report a task complete while tests are failing, the implementation is partial, or you encountered unresolved errors.",
		},
	},
	{
		title: "Environment awareness",
		paragraphs: []string{
			"Pay attention to which operating system, shell, and working directory you are running in, and adapt commands accordingly.",
			"Prefer the project's own scripts and tooling over ad hoc shell invocations when both are available.",
			"Assume the user's repository may be large; prefer targeted search tools over reading entire directory trees when looking for something specific.",
		},
	},
}

func buildInstructionsText() string {
	var section string
	section += "You are an interactive CLI tool that helps users with software engineering tasks. "
	section += "Use the instructions below and the tools available to you to assist the user.\n\n"
	for _, block := range instructionSections {
		section += "# " + block.title + "\n\n"
		for _, p := range block.paragraphs {
			section += p + " "
		}
		section += "\n\n"
	}
	return section
}
