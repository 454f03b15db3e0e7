package usecase

// RenderMarkdown is exported for testing
var RenderMarkdown = renderMarkdown

// RoundScore is exported for testing
var RoundScore = roundScore

// ParseFact is exported for testing
var ParseFact = parseFact

// RenderConversation is exported for testing
var RenderConversation = renderConversation
