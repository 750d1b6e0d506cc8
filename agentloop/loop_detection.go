package agentloop

import "fmt"

// DetectLoop checks whether the last windowSize batch signatures follow a
// repeating pattern of length 1, 2 or 3 that occurs at least twice. An empty
// signature (a reply with no directives) never counts toward a loop.
func DetectLoop(signatures []string, windowSize int) bool {
	if windowSize < 2 || len(signatures) < windowSize {
		return false
	}
	sigs := signatures[len(signatures)-windowSize:]
	for _, s := range sigs {
		if s == "" {
			return false
		}
	}

	for patternLen := 1; patternLen <= 3 && patternLen*2 <= windowSize; patternLen++ {
		if windowSize%patternLen != 0 {
			continue
		}
		pattern := sigs[:patternLen]
		allMatch := true
		for i := patternLen; i < windowSize && allMatch; i += patternLen {
			for j := 0; j < patternLen; j++ {
				if sigs[i+j] != pattern[j] {
					allMatch = false
					break
				}
			}
		}
		if allMatch {
			return true
		}
	}
	return false
}

// loopWarning is the steering note added after a detected loop.
func loopWarning(windowSize int) string {
	return fmt.Sprintf("Loop detected: your last %d replies requested the same actions. "+
		"Try a different approach, or output %s if every task is done.", windowSize, CompletionMarker)
}
