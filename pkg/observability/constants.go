package observability

const (
	AttrLLMModel        = "llm.model"
	AttrLLMProvider     = "llm.provider"
	AttrLLMTokensInput  = "llm.tokens.input"
	AttrLLMTokensOutput = "llm.tokens.output"
	AttrToolName        = "tool.name"
	AttrProtocolName    = "protocol.name"
	AttrRound           = "negotiation.round"
	AttrAttempt         = "synthesis.attempt"

	SpanLLMRequest       = "agora.llm_request"
	SpanToolInvocation   = "agora.tool_invocation"
	SpanNegotiation      = "agora.negotiation"
	SpanNegotiationRound = "agora.negotiation_round"
	SpanSynthesis        = "agora.synthesis"
	SpanFeasibilityCheck = "agora.feasibility_check"

	DefaultServiceName = "agora"
)
