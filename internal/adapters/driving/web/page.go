package web

// pageHTML is the configuration page, served inline so the binary stays
// self-contained. The scripts poll /api/heartbeat every 2 seconds; once
// the tab closes the server notices the silence and stops itself.
const pageHTML = `<!DOCTYPE html>
<html lang="zh-CN">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Get笔记配置管理</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, Helvetica, Arial, sans-serif; max-width: 800px; margin: 0 auto; padding: 20px; background-color: #f5f5f7; }
        .container { background: white; padding: 30px; border-radius: 12px; box-shadow: 0 4px 6px rgba(0,0,0,0.1); }
        h1 { margin-top: 0; color: #1d1d1f; }
        .form-group { margin-bottom: 20px; }
        label { display: block; margin-bottom: 8px; font-weight: 500; color: #1d1d1f; }
        input[type="text"], textarea { width: 100%; padding: 10px; border: 1px solid #d2d2d7; border-radius: 6px; font-size: 16px; box-sizing: border-box; }
        textarea { height: 80px; resize: vertical; }
        .checkbox-group { display: flex; align-items: center; }
        .checkbox-group input { margin-right: 10px; width: 18px; height: 18px; }
        button { background-color: #0071e3; color: white; border: none; padding: 10px 20px; border-radius: 6px; font-size: 16px; cursor: pointer; transition: background 0.2s; }
        button:hover { background-color: #0077ed; }
        .kb-list { margin-top: 40px; border-top: 1px solid #e5e5e5; padding-top: 20px; }
        .kb-item { background: #fbfbfd; border: 1px solid #e5e5e5; padding: 15px; border-radius: 8px; margin-bottom: 10px; display: flex; flex-direction: column; }
        .kb-info { width: 100%; margin-bottom: 12px; }
        .kb-name { font-weight: 600; font-size: 18px; color: #1d1d1f; }
        .kb-desc { color: #86868b; font-size: 14px; margin-top: 4px; }
        .kb-actions { display: flex; gap: 10px; align-self: flex-end; }
        .tag { display: inline-block; padding: 2px 8px; border-radius: 4px; font-size: 12px; font-weight: 500; }
        .tag-default { background: #e8f2ff; color: #0071e3; }
        .btn-small { padding: 6px 12px; font-size: 14px; background-color: #f5f5f7; color: #1d1d1f; border: 1px solid #d2d2d7; }
        .btn-small:hover { background-color: #e5e5e5; }
        #message { margin-top: 20px; padding: 10px; border-radius: 6px; display: none; }
        .success { background-color: #e8fcf1; color: #0f6b36; }
        .error { background-color: #fce8e8; color: #c92a2a; }
    </style>
</head>
<body>
    <div class="container">
        <div style="display: flex; justify-content: space-between; align-items: center; margin-bottom: 20px;">
            <h1 style="margin: 0;">配置知识库</h1>
            <button type="button" id="stopBtn" style="background-color: #ef4444; padding: 8px 16px; font-size: 14px;">停止服务</button>
        </div>
        <form id="configForm">
            <div class="form-group">
                <label for="name">知识库名称 (唯一标识)</label>
                <input type="text" id="name" name="name" required placeholder="例如: my-notes">
            </div>
            <div class="form-group">
                <label for="api_key">API Key</label>
                <input type="text" id="api_key" name="api_key" required placeholder="Get笔记 API Key">
            </div>
            <div class="form-group">
                <label for="topic_id">Topic ID</label>
                <input type="text" id="topic_id" name="topic_id" required placeholder="知识库 ID">
            </div>
            <div class="form-group">
                <label for="description">描述 (用于语义路由)</label>
                <textarea id="description" name="description" placeholder="该库主要涵盖...，核心关键词包括...，适用于...&#10;auto: 根据知识库内容自动生成全面的描述&#10;不填写就是忽略，后面可以增加"></textarea>
            </div>
            <div class="form-group checkbox-group">
                <input type="checkbox" id="set_default" name="set_default">
                <label for="set_default" style="margin-bottom: 0;">设为默认知识库</label>
            </div>
            <button type="submit">保存配置</button>
        </form>
        <div id="message"></div>

        <div class="kb-list">
            <h2>现有知识库</h2>
            <div id="kbList">加载中...</div>
        </div>
    </div>

    <script>
        const form = document.getElementById('configForm');
        const messageDiv = document.getElementById('message');
        const kbListDiv = document.getElementById('kbList');
        const stopBtn = document.getElementById('stopBtn');

        // 启动心跳（每2秒发送一次）
        setInterval(async () => {
            try {
                await fetch('/api/heartbeat', {method: 'GET'});
            } catch (e) {
                console.error('Heartbeat error:', e);
            }
        }, 2000);

        // 停止服务按钮
        stopBtn.addEventListener('click', async () => {
            if (confirm('确定要停止服务吗？')) {
                try {
                    await fetch('/api/shutdown', {method: 'POST'});
                    messageDiv.textContent = '服务已停止，请关闭此页面';
                    messageDiv.className = 'success';
                    messageDiv.style.display = 'block';
                    stopBtn.disabled = true;
                } catch (e) {
                    console.error('Shutdown error:', e);
                }
            }
        });

        function showMessage(text, type) {
            messageDiv.textContent = text;
            messageDiv.className = type;
            messageDiv.style.display = 'block';
            setTimeout(() => { messageDiv.style.display = 'none'; }, 3000);
        }

        async function loadKBs() {
            try {
                const response = await fetch('/api/list');
                const data = await response.json();
                renderKBs(data);
            } catch (e) {
                console.error(e);
            }
        }

        function renderKBs(data) {
            kbListDiv.innerHTML = '';
            if (data.kbs.length === 0) {
                kbListDiv.innerHTML = '<p style="color: #86868b;">暂无配置</p>';
                return;
            }

            data.kbs.forEach(kb => {
                const div = document.createElement('div');
                div.className = 'kb-item';
                div.id = 'kb-' + kb.name;
                const isDefault = kb.name === data.default_kb;

                // 检查描述状态
                let descStatus = '';
                let descClass = '';
                if (kb.description === '-auto' || kb.description === '-auto-generating') {
                    descStatus = ' <span style="color: #f59e0b;">⏳ 生成中...</span>';
                    descClass = ' style="color: #f59e0b;"';
                } else if (kb.description === '-auto-timeout' || kb.description === '-auto-failed' || kb.description === '-auto-error') {
                    descStatus = ' <span style="color: #ef4444;">⚠️ 生成失败</span>';
                    descClass = ' style="color: #ef4444;"';
                } else if (kb.description && !kb.description.startsWith('-auto')) {
                    descStatus = ' <span style="color: #10b981;">✅</span>';
                }

                let html = '' +
                    '<div class="kb-info">' +
                        '<div class="kb-name">' +
                            kb.name +
                            (isDefault ? '<span class="tag tag-default">默认</span>' : '') +
                        '</div>' +
                        '<div class="kb-desc"' + descClass + '>' + (kb.description || '无描述') + descStatus + '</div>' +
                        '<div style="font-size: 12px; color: #86868b; margin-top: 2px;">ID: ' + kb.topic_id + '</div>' +
                    '</div>' +
                    '<div class="kb-actions">' +
                        '<button type="button" class="btn-small" onclick="editKB(\'' + kb.name + '\')">编辑</button>' +
                        '<button type="button" class="btn-small" onclick="updateDesc(\'' + kb.name + '\')">更新描述</button>' +
                        (!isDefault ? '<button type="button" class="btn-small" onclick="setDefault(\'' + kb.name + '\')">设为默认</button>' : '') +
                    '</div>';
                div.innerHTML = html;
                kbListDiv.appendChild(div);
            });

            // Store data for editing
            window.kbsData = data.kbs;
        }

        async function updateDesc(name) {
            try {
                const response = await fetch('/api/update-desc', {
                    method: 'POST',
                    headers: {'Content-Type': 'application/json'},
                    body: JSON.stringify({name})
                });

                if (response.ok) {
                    const result = await response.json();
                    if (result.status === 'queued') {
                        showMessage('已加入生成队列，请稍候...', 'success');
                        // 轮询检查状态
                        let checkCount = 0;
                        const interval = setInterval(async () => {
                            const statusRes = await fetch('/api/task-status?name=' + encodeURIComponent(name));
                            const statusData = await statusRes.json();

                            if (statusData.status === 'success' || statusData.status === 'failed') {
                                clearInterval(interval);
                                loadKBs();
                                if (statusData.status === 'success') {
                                    showMessage('描述已更新', 'success');
                                } else {
                                    showMessage('生成失败，请重试', 'error');
                                }
                            }

                            checkCount++;
                            if (checkCount > 150) { // 15秒超时
                                clearInterval(interval);
                            }
                        }, 100);
                    } else if (result.status === 'duplicate') {
                        showMessage('此知识库正在生成中，请稍候', 'error');
                    }
                } else {
                    showMessage('操作失败', 'error');
                }
            } catch (e) {
                showMessage('网络错误', 'error');
            }
        }

        function editKB(name) {
            const kb = window.kbsData.find(k => k.name === name);
            if (kb) {
                document.getElementById('name').value = kb.name;
                document.getElementById('api_key').value = kb.api_key;
                document.getElementById('topic_id').value = kb.topic_id;
                document.getElementById('description').value = kb.description;
                document.getElementById('set_default').checked = false;
                window.scrollTo({ top: 0, behavior: 'smooth' });
            }
        }

        async function setDefault(name) {
            try {
                const response = await fetch('/api/set_default', {
                    method: 'POST',
                    headers: {'Content-Type': 'application/json'},
                    body: JSON.stringify({name})
                });
                if (response.ok) {
                    showMessage('已设为默认', 'success');
                    loadKBs();
                }
            } catch (e) {
                showMessage('操作失败', 'error');
            }
        }

        form.onsubmit = async (e) => {
            e.preventDefault();
            const formData = {
                name: document.getElementById('name').value,
                api_key: document.getElementById('api_key').value,
                topic_id: document.getElementById('topic_id').value,
                description: document.getElementById('description').value,
                set_default: document.getElementById('set_default').checked
            };

            try {
                const response = await fetch('/api/save', {
                    method: 'POST',
                    headers: {'Content-Type': 'application/json'},
                    body: JSON.stringify(formData)
                });

                if (response.ok) {
                    showMessage('保存成功', 'success');
                    form.reset();
                    loadKBs();
                } else {
                    showMessage('保存失败', 'error');
                }
            } catch (e) {
                showMessage('网络错误', 'error');
            }
        };

        loadKBs();
    </script>
</body>
</html>
`
