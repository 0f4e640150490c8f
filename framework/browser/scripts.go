package browser

import (
	"encoding/json"
	"fmt"
)

// isVisibleJS decides whether an element is laid out and visible: connected, no ancestor with
// display:none or zero opacity, not visibility:hidden, a non-empty box, and, when its centre is
// inside the viewport, not covered by another element.
const isVisibleJS = `function isVisible(el) {
  if (!el || !el.isConnected) return false;
  const style = getComputedStyle(el);
  if (style.visibility === "hidden" || style.visibility === "collapse") return false;
  for (let n = el; n && n.nodeType === Node.ELEMENT_NODE; n = n.parentElement) {
    const s = getComputedStyle(n);
    if (s.display === "none" || parseFloat(s.opacity) === 0) return false;
  }
  const rect = el.getBoundingClientRect();
  if (rect.width <= 0 || rect.height <= 0) return false;
  const x = rect.left + rect.width / 2;
  const y = rect.top + rect.height / 2;
  if (x >= 0 && y >= 0 && x < window.innerWidth && y < window.innerHeight) {
    const hit = document.elementFromPoint(x, y);
    if (hit && hit !== el && !el.contains(hit)) return false;
  }
  return true;
}`

// findElementJS returns the first element matching a selector, an optional condition and an
// optional visibility requirement.
const findElementJS = `function findElement(selector, condition, displayed) {
  let elems;
  try {
    elems = document.querySelectorAll(selector);
  } catch (e) {
    throw new Error("invalid selector " + selector + ": " + e.message);
  }
  for (const elem of elems) {
    if (condition && !condition(elem)) continue;
    if (displayed && !isVisible(elem)) continue;
    return elem;
  }
  return null;
}`

func jsString(s string) string {
	b, _ := json.Marshal(s) // marshaling a string cannot fail
	return string(b)
}

// jsCondition turns a condition expression over "elem" into a function literal, or "null".
func jsCondition(condition string) string {
	if condition == "" {
		return "null"
	}
	return fmt.Sprintf("(elem) => (%s)", condition)
}

func matchCSSScript(selector, condition string, displayed bool) string {
	return fmt.Sprintf(`(() => {
%s
%s
return findElement(%s, %s, %t) !== null;
})()`, isVisibleJS, findElementJS, jsString(selector), jsCondition(condition), displayed)
}

func matchTextScript(text string, displayed bool) string {
	return fmt.Sprintf(`(() => {
%s
const text = %s;
const displayed = %t;
if (!document.body) return false;
const walker = document.createTreeWalker(document.body, NodeFilter.SHOW_TEXT);
for (let node = walker.nextNode(); node; node = walker.nextNode()) {
  if (!node.nodeValue.includes(text)) continue;
  if (!displayed || isVisible(node.parentElement)) return true;
}
return !displayed && document.body.textContent.includes(text);
})()`, isVisibleJS, jsString(text), displayed)
}

func evalBoolScript(script string) string {
	return fmt.Sprintf("!!((() => {\n%s\n})())", script)
}

func clickScript(selector, condition string) string {
	return fmt.Sprintf(`(() => {
%s
%s
const elem = findElement(%s, %s, true);
if (elem === null) return false;
elem.click();
return true;
})()`, isVisibleJS, findElementJS, jsString(selector), jsCondition(condition))
}

func attributeScript(selector, name string) string {
	return fmt.Sprintf(`(() => {
const elem = document.querySelector(%s);
if (elem === null) return "";
const name = %s;
const value = elem.getAttribute(name);
if (value === null) return "";
if (name === "href" || name === "src") return new URL(value, document.baseURI).href;
return value;
})()`, jsString(selector), jsString(name))
}

const documentHTMLScript = `document.documentElement ? document.documentElement.outerHTML : ""`
