package browser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScriptsQuoteUserInput(t *testing.T) {
	s := matchCSSScript(`a[href*="x"]`, "", true)
	assert.Contains(t, s, `findElement("a[href*=\"x\"]", null, true)`)

	s = matchTextScript("お使いのブラウザでは閲覧できません", false)
	assert.Contains(t, s, `const text = "お使いのブラウザでは閲覧できません";`)
	assert.Contains(t, s, "const displayed = false;")
}

func TestConditionBecomesFunction(t *testing.T) {
	assert.Equal(t, "null", jsCondition(""))
	assert.Equal(t, "(elem) => (elem.innerText.includes('Try for free'))",
		jsCondition("elem.innerText.includes('Try for free')"))
	assert.Contains(t, clickScript("a", "elem.id"), `findElement("a", (elem) => (elem.id), true)`)
}

func TestEvalBoolWrapsScriptBody(t *testing.T) {
	assert.Equal(t, "!!((() => {\nreturn 1 > 0\n})())", evalBoolScript("return 1 > 0"))
}
