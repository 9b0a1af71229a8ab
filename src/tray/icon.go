package tray

import "fyne.io/fyne/v2"

// iconSVG is a dashed capture rectangle with an "A→あ" translation mark.
const iconSVG = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 16 16" width="16" height="16">
  <rect x="1.5" y="2.5" width="13" height="8" fill="none" stroke="#0078d4" stroke-width="1.2" stroke-dasharray="2,1"/>
  <text x="3" y="9" font-family="sans-serif" font-size="6" fill="#333333">A</text>
  <path d="M7 7 L10 7 M9 6 L10 7 L9 8" fill="none" stroke="#333333" stroke-width="0.8"/>
  <rect x="4" y="11.5" width="8" height="3" rx="1" fill="#0078d4" opacity="0.8"/>
</svg>`

// Icon is the tray and window icon.
var Icon fyne.Resource = fyne.NewStaticResource("screen-translate.svg", []byte(iconSVG))
