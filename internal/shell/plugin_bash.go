package shell

// BashPlugin is the bash plugin source. Inside a recorded terminal it prefixes
// the prompt with [rec], or [rec paused] while logging is paused.
const BashPlugin = `# termlog shell plugin, generated by termlog setup
# Source this file from your ~/.bashrc:
#   source ~/.config/termlog/termlog.plugin.bash

_termlog_prompt() {
  _termlog_tag=""
  [[ -n "$TERMLOG_SESSION" ]] || return
  local record="${XDG_DATA_HOME:-$HOME/.local/share}/termlog/sessions/$TERMLOG_SESSION.json"
  if [[ ! -f "$record" ]]; then
    return
  elif grep -q '"paused":true' "$record" 2>/dev/null; then
    _termlog_tag="[rec paused] "
  else
    _termlog_tag="[rec] "
  fi
}

PROMPT_COMMAND="_termlog_prompt${PROMPT_COMMAND:+;$PROMPT_COMMAND}"
PS1='${_termlog_tag}'"$PS1"
`
