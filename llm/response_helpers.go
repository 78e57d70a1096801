package llm

import "fmt"

// FirstChoice safely returns the first choice from a ChatResponse.
// Returns an error if the response is nil or has no choices.
func FirstChoice(resp *ChatResponse) (ChatChoice, error) {
	if resp == nil {
		return ChatChoice{}, fmt.Errorf("nil ChatResponse")
	}
	if len(resp.Choices) == 0 {
		return ChatChoice{}, fmt.Errorf("empty choices in ChatResponse (model returned no choices)")
	}
	return resp.Choices[0], nil
}

// FirstFinishReason returns the finish reason of the first chat choice, or nil.
func FirstFinishReason(resp *ChatResponse) *string {
	choice, err := FirstChoice(resp)
	if err != nil {
		return nil
	}
	return choice.FinishReason
}

// FirstCompletionsFinishReason returns the finish reason of the first completions choice, or nil.
func FirstCompletionsFinishReason(resp *CompletionsResponse) *string {
	if resp == nil || len(resp.Choices) == 0 {
		return nil
	}
	return resp.Choices[0].FinishReason
}

// ChoiceCount returns the number of choices a request will produce.
// n <= 0 or nil falls back to one choice per prompt.
func ChoiceCount(n *int, prompts int) int {
	per := 1
	if n != nil && *n > 0 {
		per = *n
	}
	if prompts < 1 {
		prompts = 1
	}
	return per * prompts
}
